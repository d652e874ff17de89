package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/coach/internal/domain"
	"github.com/xiaot623/gogo/coach/internal/retry"
	"github.com/xiaot623/gogo/coach/policy"
)

var fastRetry = retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

func newClassifier(t *testing.T) policy.Classifier {
	t.Helper()
	c, err := policy.NewPatternClassifier(map[domain.ServiceID][]string{
		domain.ServiceWorkout: {"throttling", "model.*unavailable"},
		domain.ServiceMeal:    {"quota exceeded"},
	})
	require.NoError(t, err)
	return c
}

var sampleReq = domain.GeneratorRequest{Username: "alice", UserID: "u-1", Query: "plan a strength week"}

func TestGeneratePassesDataThrough(t *testing.T) {
	var gotReq domain.GeneratorRequest
	var gotRequestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = r.Header.Get("X-Request-ID")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		fmt.Fprint(w, `{"statusCode":200,"body":{"success":true,"data":{"days":[{"name":"push"}]}}}`)
	}))
	defer server.Close()

	client := NewClient(domain.ServiceWorkout, server.URL, time.Second, newClassifier(t))
	ctx := WithRequestID(context.Background(), "req-42")

	data, err := client.Generate(ctx, sampleReq)
	require.NoError(t, err)
	assert.JSONEq(t, `{"days":[{"name":"push"}]}`, string(data))
	assert.Equal(t, sampleReq, gotReq)
	assert.Equal(t, "req-42", gotRequestID)
}

func TestGenerateAcceptsStringBodyAndBareEnvelope(t *testing.T) {
	cases := map[string]string{
		"string body": `{"statusCode":200,"body":"{\"success\":true,\"data\":[1,2]}"}`,
		"bare body":   `{"success":true,"data":[1,2]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, payload)
			}))
			defer server.Close()

			client := NewClient(domain.ServiceMeal, server.URL, time.Second, nil)
			data, err := client.Generate(context.Background(), sampleReq)
			require.NoError(t, err)
			assert.JSONEq(t, `[1,2]`, string(data))
		})
	}
}

func TestGenerateClassification(t *testing.T) {
	cases := []struct {
		name       string
		httpStatus int
		payload    string
		retryable  bool
		sentinel   error
	}{
		{"http 503", http.StatusServiceUnavailable, `oops`, true, nil},
		{"envelope 429", http.StatusOK, `{"statusCode":429,"body":{"success":false,"error":"slow down"}}`, true, nil},
		{"non json", http.StatusOK, `<html>`, false, ErrMalformedResponse},
		{"missing success", http.StatusOK, `{"statusCode":200,"body":{"data":{}}}`, false, ErrMalformedResponse},
		{"success without data", http.StatusOK, `{"success":true}`, false, ErrMalformedResponse},
		{"lexicon match", http.StatusOK, `{"statusCode":200,"body":{"success":false,"error":"ThrottlingException"}}`, true, nil},
		{"lexicon miss", http.StatusOK, `{"statusCode":200,"body":{"success":false,"error":"invalid prompt"}}`, false, ErrGenerationFailed},
		{"object error", http.StatusOK, `{"success":false,"error":{"code":"MODEL","message":"model temporarily unavailable"}}`, true, nil},
		{"http 400", http.StatusBadRequest, `{"success":false,"error":"bad input"}`, false, ErrGenerationFailed},
		{"envelope 500 claiming success", http.StatusOK, `{"statusCode":500,"body":{"success":true,"data":{"plan":1}}}`, false, ErrGenerationFailed},
		{"http 400 claiming success", http.StatusBadRequest, `{"success":true,"data":{"plan":1}}`, false, ErrGenerationFailed},
		{"envelope 500 with lexicon text", http.StatusOK, `{"statusCode":500,"body":{"success":true,"error":"ThrottlingException"}}`, true, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.httpStatus)
				fmt.Fprint(w, tc.payload)
			}))
			defer server.Close()

			client := NewClient(domain.ServiceWorkout, server.URL, time.Second, newClassifier(t))
			_, err := client.Generate(context.Background(), sampleReq)
			require.Error(t, err)
			assert.Equal(t, tc.retryable, retry.IsRetryable(err))
			if tc.sentinel != nil {
				assert.ErrorIs(t, err, tc.sentinel)
			}
		})
	}
}

func TestGenerateConnectionErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(domain.ServiceMeal, url, time.Second, nil)
	_, err := client.Generate(context.Background(), sampleReq)
	require.Error(t, err)
	assert.True(t, retry.IsRetryable(err))
}

func TestRunRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"statusCode":200,"body":{"success":true,"data":{"ok":true}}}`)
	}))
	defer server.Close()

	client := NewClient(domain.ServiceMeal, server.URL, time.Second, nil)
	out := client.Run(context.Background(), sampleReq, fastRetry, zerolog.Nop())

	assert.True(t, out.Success)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.JSONEq(t, `{"ok":true}`, string(out.Payload))
}

func TestRunExhaustedMapsToUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	workout := NewClient(domain.ServiceWorkout, server.URL, time.Second, nil)
	out := workout.Run(context.Background(), sampleReq, fastRetry, zerolog.Nop())

	assert.False(t, out.Success)
	assert.Equal(t, domain.CodeWorkoutUnavailable, out.ErrorCode)
	assert.Equal(t, fastRetry.MaxRetries+1, out.Attempts)
	assert.Equal(t, int32(fastRetry.MaxRetries+1), atomic.LoadInt32(&calls))
	assert.Nil(t, out.Payload)
}

func TestRunTerminalMapsToGenerationFailed(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `not json`)
	}))
	defer server.Close()

	client := NewClient(domain.ServiceMeal, server.URL, time.Second, nil)
	out := client.Run(context.Background(), sampleReq, fastRetry, zerolog.Nop())

	assert.False(t, out.Success)
	assert.Equal(t, domain.CodeGenerationFailed, out.ErrorCode)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRunDeadlineMapsToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(domain.ServiceMeal, server.URL, 5*time.Second, nil)
	out := client.Run(ctx, sampleReq, fastRetry, zerolog.Nop())

	assert.False(t, out.Success)
	assert.Equal(t, domain.CodeMealUnavailable, out.ErrorCode)
}

func TestErrorTextForms(t *testing.T) {
	assert.Equal(t, "", errorText(nil))
	assert.Equal(t, "boom", errorText(json.RawMessage(`"boom"`)))
	assert.Equal(t, "E1 broke", errorText(json.RawMessage(`{"code":"E1","message":"broke"}`)))
	assert.True(t, errors.Is(fmt.Errorf("x: %w", ErrMalformedResponse), ErrMalformedResponse))
}
