// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

/*
Package collections reads movie list documents and resolves them against
the catalog.

A document is a JSON object holding either a "collections" array:

	{"collections": [{"name": "AFI 100", "movies": [{"name": "Heat", "year": 1995, "rank": 1}]}]}

or a bare "movies" array, which becomes a single collection named
"<Unnamed Collection>". Movies carry a name, a year, an optional rank
(-1 when absent) and a resolution given either as width and height or as
a type: "uhd" (3840x2160), "dvd" (720x480), or "sd" and empty
(1920x1080).

Parse never returns a partial result. Every failure wraps
ErrInvalidDocument.

Match looks each movie up in a catalog snapshot with media.Matches and
reports the ones that no record satisfies.
*/
package collections
