package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abelzeko/flood-watch/internal/entities"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func testReport() entities.FloodReport {
	r := entities.NewFloodReport(time.Date(2026, 10, 18, 8, 30, 0, 0, entities.Location))
	r.ID = 7
	r.Address = "Jl. Slamet Riyadi 1"
	r.FloodHeight = entities.FloodHeightKnee
	r.ReporterName = "Budi"
	r.SubmitterID = "tg:42"
	return r
}

func newTestMirror(t *testing.T, url string) *Mirror {
	t.Helper()
	logger, _ := test.NewNullLogger()
	m, err := NewMirror(context.Background(), "sheet-1", "", logger,
		option.WithEndpoint(url+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return m
}

func TestMirror_AppendReport(t *testing.T) {
	var (
		gotPath  string
		gotQuery string
		gotBody  struct {
			Values [][]string `json:"values"`
		}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestMirror(t, srv.URL).AppendReport(context.Background(), testReport()))

	assert.True(t, strings.Contains(gotPath, "/spreadsheets/sheet-1/values/flood_reports!A1"), gotPath)
	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	assert.Contains(t, gotQuery, "valueInputOption=USER_ENTERED")
	require.Len(t, gotBody.Values, 1)
	assert.Equal(t, []string{
		"2026-10-18 08:30:00", "Jl. Slamet Riyadi 1", "knee", "Budi", "", "tg:42", "", "pending",
	}, gotBody.Values[0])
}

func TestMirror_AppendReportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
	}))
	defer srv.Close()

	err := newTestMirror(t, srv.URL).AppendReport(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report 7")
}

func TestCredentialOptions(t *testing.T) {
	opts, err := CredentialOptions(`{"type":"service_account"}`, "/ignored.json")
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	opts, err = CredentialOptions("", "/creds.json")
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	_, err = CredentialOptions("", "")
	assert.Error(t, err)
}

func TestNewMirror_RequiresSpreadsheet(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := NewMirror(context.Background(), "", "x", logger, option.WithoutAuthentication())
	assert.Error(t, err)
}
