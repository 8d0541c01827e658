// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package sync

import (
	"context"
	"fmt"

	"github.com/tomtom215/embysync/internal/models"
)

func (o *Orchestrator) startTests() <-chan Report {
	j := o.newJob("test")
	j.report.OK = true
	for _, s := range o.settings.EnabledServers() {
		server, name := s.Key, s.DisplayName()
		o.issue(TestServer, server, j, nil,
			func(ctx context.Context) (any, error) { return o.source.SystemInfo(ctx, server) },
			func(result any, err error) {
				res := TestResult{Server: server}
				if err != nil {
					res.Message = err.Error()
					j.report.OK = false
				} else if info, ok := result.(*models.SystemInfo); ok {
					res.OK = true
					res.Info = info
					res.Message = fmt.Sprintf("connected to %s (%s, version %s)", name, info.ServerName, info.Version)
				}
				j.report.Tests = append(j.report.Tests, res)
			})
	}
	if j.outstanding == 0 {
		o.finish(j)
	}
	return j.done
}
