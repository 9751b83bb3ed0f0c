package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidPostcode(t *testing.T) {
	tests := []struct {
		postcode string
		want     bool
	}{
		{"SW1A 1AA", true},
		{"sw1a 1aa", true},
		{"M1 1AE", true},
		{"B33 8TH", true},
		{"CR2 6XH", true},
		{"DN55 1PT", true},
		{"SW1A", true},
		{" E1 ", true},
		{"", false},
		{"12345", false},
		{"INVALID", false},
		{"SW1A 1AAA", false},
		{"SW1A1AA extra", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPostcode(tt.postcode), "postcode %q", tt.postcode)
	}
}

func TestResolveFirstMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/postcodes", r.URL.Path)
		assert.Equal(t, "SW1A 1AA", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": 200,
			"result": [
				{"postcode": "SW1A 1AA", "latitude": 51.501009, "longitude": -0.141588, "admin_district": "Westminster"},
				{"postcode": "SW1A 1AB", "latitude": 51.5, "longitude": -0.14, "admin_district": "Westminster"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logrus.New())
	loc, err := client.Resolve(context.Background(), "SW1A 1AA")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, 51.501009, loc.Latitude)
	assert.Equal(t, -0.141588, loc.Longitude)
	assert.Equal(t, "Westminster", loc.Locality)
}

func TestResolveEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": 200, "result": null}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logrus.New())
	loc, err := client.Resolve(context.Background(), "ZZ99 9ZZ")
	assert.NoError(t, err)
	assert.Nil(t, loc)
}

func TestResolveUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logrus.New())
	loc, err := client.Resolve(context.Background(), "SW1A 1AA")
	assert.NoError(t, err)
	assert.Nil(t, loc)
}

func TestResolveInvalidPostcodeSkipsNetwork(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logrus.New())
	loc, err := client.Resolve(context.Background(), "not a postcode")
	assert.ErrorIs(t, err, ErrInvalidPostcode)
	assert.Nil(t, loc)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
