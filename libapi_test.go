package busbridge

import (
	"errors"
	"testing"
	"time"
)

func TestServiceExportsPropagateErrors(t *testing.T) {
	if _, err := NewService(nil, nil, nil, ""); !errors.Is(err, ErrConfigRequired) {
		t.Fatalf("expected config required error, got %v", err)
	}

	if _, err := NewService(&Config{}, nil, nil, ""); !errors.Is(err, ErrLoggerRequired) {
		t.Fatalf("expected logger required error, got %v", err)
	}

	if _, err := NewService(&Config{}, NopLogger(), nil, ""); !errors.Is(err, ErrBusRequired) {
		t.Fatalf("expected bus required error, got %v", err)
	}
}

func TestOutcomeKindExports(t *testing.T) {
	if OutcomeOK.String() != "ok" {
		t.Fatalf("expected ok, got %q", OutcomeOK.String())
	}
	if OutcomeTimeout.String() != "timeout" {
		t.Fatalf("expected timeout, got %q", OutcomeTimeout.String())
	}
	if ReasonPublishFailed != "publish_failed" || ReasonBusUnavailable != "bus_unavailable" {
		t.Fatal("unexpected failure reason values")
	}
}

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	if _, err := Marshal(payload); err != nil {
		t.Fatalf("marshal alias failed: %v", err)
	}
	if _, err := MarshalIndent(payload, "", "  "); err != nil {
		t.Fatalf("marshal indent alias failed: %v", err)
	}
	if err := Unmarshal([]byte(`{"hello":"world"}`), &payload); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
}

func TestMetadataExports(t *testing.T) {
	if MetadataKeyCorrelationID != "correlationId" {
		t.Fatalf("unexpected correlation key %q", MetadataKeyCorrelationID)
	}

	md := RequestMetadata("01ARZ3NDEKTSV4RRFFQ69G5FAV", "flights.search.replies", time.UnixMilli(1716212345678))
	if md[MetadataKeyCorrelationID] != "01ARZ3NDEKTSV4RRFFQ69G5FAV" {
		t.Fatalf("expected correlation id in metadata, got %#v", md)
	}
	if md[MetadataKeyReplyTo] != "flights.search.replies" {
		t.Fatalf("expected reply topic in metadata, got %#v", md)
	}
	if md[MetadataKeySentAt] != "1716212345678" {
		t.Fatalf("expected sent-at stamp in metadata, got %#v", md)
	}

	pairs := NewMetadata("key", "value")
	if pairs["key"] != "value" {
		t.Fatalf("expected metadata to contain key, got %#v", pairs)
	}
}

func TestIDExport(t *testing.T) {
	id := CreateULID()
	if len(id) != 26 {
		t.Fatalf("expected 26-char ulid, got %q", id)
	}
}

func TestBusErrorExports(t *testing.T) {
	if !IsConnectionError(ErrNotConnected) {
		t.Fatal("expected ErrNotConnected to classify as connection error")
	}
	if IsConnectionError(errors.New("boom")) {
		t.Fatal("expected generic error to not classify as connection error")
	}
}
