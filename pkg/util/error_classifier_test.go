package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableError(t *testing.T) {
	var jsonErr error
	jsonErr = json.Unmarshal([]byte(`{bad`), &struct{}{})
	require.Error(t, jsonErr)

	cases := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"json syntax", jsonErr, false, "json_decode_error"},
		{"no rows", pgx.ErrNoRows, false, "row_not_found"},
		{"wrapped no rows", fmt.Errorf("find mapping: %w", pgx.ErrNoRows), false, "row_not_found"},
		{"duplicate key", errors.New(`duplicate key value violates unique constraint "task_calendar_mappings_task_id_user_id_key"`), false, "duplicate_key"},
		{"db connection", errors.New("dial tcp: connection refused"), true, "db_connection_error"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"calendar 5xx", errors.New("calendar api 5xx: 503"), true, "google_api_unavailable"},
		{"token 5xx", errors.New("token endpoint 5xx: 502"), true, "google_api_unavailable"},
		{"calendar 4xx", errors.New("calendar api error 404: not found"), false, "google_api_error"},
		{"invalid grant", errors.New(`token endpoint error 400: {"error":"invalid_grant"}`), false, "oauth_invalid_grant"},
		{"unknown", errors.New("something odd"), false, "unknown_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tc.err)
			require.Equal(t, tc.retryable, retryable)
			require.Equal(t, tc.errType, errType)
		})
	}
}

func TestShouldRetry(t *testing.T) {
	require.False(t, ShouldRetry(1, 5, false))
	require.True(t, ShouldRetry(5, 5, true))
	require.False(t, ShouldRetry(6, 5, true))
}

func TestFormatRetryKeyStableAndQueueScoped(t *testing.T) {
	body := []byte(`{"taskId":"task-1"}`)
	k1 := FormatRetryKey("calendar-service-task-created", body)
	k2 := FormatRetryKey("calendar-service-task-created", body)
	require.Equal(t, k1, k2)

	// 同一消息在不同队列各自计数
	require.NotEqual(t, k1, FormatRetryKey("insights-service-task-events", body))
	require.NotEqual(t, k1, FormatRetryKey("calendar-service-task-created", []byte(`{"taskId":"task-2"}`)))
}
