package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bilagscraper/pkg/config"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupDisabled(t *testing.T) {
	tel, err := Setup(context.Background(), config.TelemetryConfig{})
	require.NoError(t, err)
	assert.False(t, tel.Enabled())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestSetupEnabled(t *testing.T) {
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tel, err := Setup(context.Background(), config.TelemetryConfig{
		Enabled:  true,
		Endpoint: collector.URL + "/v1/traces",
		Headers:  map[string]string{"x-api-key": "test"},
	})
	require.NoError(t, err)
	assert.True(t, tel.Enabled())

	_, span := otel.Tracer("test").Start(context.Background(), "probe")
	span.End()

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestInstrumentResty(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8})
	}))
	defer srv.Close()

	client := resty.New()
	InstrumentResty(client, "bilagscraper/test")

	_, err := client.R().SetContext(context.Background()).Get(srv.URL + "/101.jpg")
	require.NoError(t, err)
	_, err = client.R().SetContext(context.Background()).Get(srv.URL + "/missing.jpg")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "http GET", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	var status int64
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "http.response.status_code" {
			status = kv.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(200), status)
}
