package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: bad date", ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: db down", ErrUpstream), http.StatusBadGateway},
		{ErrNotFound, http.StatusNotFound},
		{ErrUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err, "X")
		require.Equal(t, tc.status, rec.Code, tc.err.Error())
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.status, body.Status)
		require.Equal(t, "X", body.Code)
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("secret connection string"), "")
	require.NotContains(t, rec.Body.String(), "secret")
}

func TestAttachment(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, Attachment(rec, "text/csv; charset=utf-8", "ar aging.csv", bytes.NewBufferString("a,b\r\n")))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="ar aging.csv"`, rec.Header().Get("Content-Disposition"))
	require.Equal(t, "a,b\r\n", rec.Body.String())
}
