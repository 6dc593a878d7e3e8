// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-repokey.
//
// go-repokey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsEnabled(t *testing.T) {
	assert.True(t, IsEnabled())

	Disable()
	assert.False(t, IsEnabled())

	Enable()
	assert.True(t, IsEnabled())
}

func TestRecordOperation(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	OperationDuration.Reset()

	RecordOperation(OpRecover, StatusSuccess, 0.5)
	RecordOperation(OpRecover, StatusSuccess, 0.7)
	RecordOperation(OpResolve, StatusError, 1.2)

	assert.Equal(t, 2, testutil.CollectAndCount(OperationsTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(OperationsTotal.WithLabelValues(OpRecover, StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(OperationsTotal.WithLabelValues(OpResolve, StatusError)))
	assert.Equal(t, 2, testutil.CollectAndCount(OperationDuration))
}

func TestRecordOperationWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()
	OperationsTotal.Reset()

	RecordOperation(OpGenerate, StatusSuccess, 0.5)
	RecordCandidate(ResultMatched)
	assert.Equal(t, 0, testutil.CollectAndCount(OperationsTotal))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusSuccess, StatusFor(nil))
	assert.Equal(t, StatusError, StatusFor(errors.New("x")))
}

func TestRecordCandidate(t *testing.T) {
	Enable()
	KeyCandidatesTotal.Reset()

	RecordCandidate(ResultRejected)
	RecordCandidate(ResultRejected)
	RecordCandidate(ResultMatched)

	assert.Equal(t, float64(2), testutil.ToFloat64(KeyCandidatesTotal.WithLabelValues(ResultRejected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(KeyCandidatesTotal.WithLabelValues(ResultMatched)))
}

func TestRecordErrorAndStoredFiles(t *testing.T) {
	Enable()
	ErrorsTotal.Reset()
	StoredFiles.Reset()

	RecordError(OpOpen, "wrong_password")
	SetStoredFiles("keys", 3)

	assert.Equal(t, float64(1), testutil.ToFloat64(ErrorsTotal.WithLabelValues(OpOpen, "wrong_password")))
	assert.Equal(t, float64(3), testutil.ToFloat64(StoredFiles.WithLabelValues("keys")))
}

func TestRecordKDF(t *testing.T) {
	Enable()
	RecordKDF(0.2)
	assert.Equal(t, 1, testutil.CollectAndCount(KDFDuration))
}

func TestHTTPMiddleware(t *testing.T) {
	Enable()
	HTTPRequestsTotal.Reset()

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/keys/", "/missing"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "404")))
}

func TestHTTPMiddlewareWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()
	HTTPRequestsTotal.Reset()

	called := false
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, called)
	assert.Equal(t, 0, testutil.CollectAndCount(HTTPRequestsTotal))
}

func TestResourceCollector(t *testing.T) {
	Enable()
	Goroutines.Set(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := StartResourceCollector(ctx, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(Goroutines) > 0
	}, time.Second, 5*time.Millisecond)
	collector.Stop()

	assert.Greater(t, testutil.ToFloat64(MemoryAllocBytes), float64(0))
}

func TestResourceCollector_StopTwice(t *testing.T) {
	rc := NewResourceCollector(time.Hour)
	done := make(chan struct{})
	go func() {
		rc.Run(context.Background())
		close(done)
	}()

	rc.Stop()
	rc.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}
