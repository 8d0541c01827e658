// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("GetMediaList", "test-a", "success"))

	RecordRequest("GetMediaList", "test-a", "success", 20*time.Millisecond)
	RecordRequest("GetMediaList", "test-a", "success", 30*time.Millisecond)

	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("GetMediaList", "test-a", "success"))
	if after-before != 2 {
		t.Errorf("expected 2 recorded requests, got %v", after-before)
	}
}

func TestRecordMergeOnlyUpdatesGaugesOnCommit(t *testing.T) {
	RecordMerge(time.Millisecond, "committed", 42, 7)
	RecordMerge(time.Millisecond, "canceled", 0, 0)

	if got := testutil.ToFloat64(CatalogRecords); got != 42 {
		t.Errorf("CatalogRecords = %v, want 42", got)
	}
	if got := testutil.ToFloat64(CatalogNeedsUpdating); got != 7 {
		t.Errorf("CatalogNeedsUpdating = %v, want 7", got)
	}
}

func TestRecordAPIRequestHistogram(t *testing.T) {
	RecordAPIRequest("GET", "/api/v1/status", 200, 5*time.Millisecond)

	m := &dto.Metric{}
	obs, err := APIRequestDuration.GetMetricWithLabelValues("GET", "/api/v1/status")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	if err := obs.(interface{ Write(*dto.Metric) error }).Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.GetHistogram().GetSampleCount() == 0 {
		t.Error("expected at least one histogram sample")
	}
}
