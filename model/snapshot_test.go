package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestSnapshot_Entity_JSONShape(t *testing.T) {
	e := Entity{
		ID:        "bafkrei-entity",
		Type:      EntityTypeScene,
		Pointers:  []string{"0,0", "0,1"},
		Timestamp: 1700000000000,
		Content:   []ContentMapping{{File: "scene.json", Hash: "bafkrei-scene"}},
	}

	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	const want = "{\n" +
		"  \"id\": \"bafkrei-entity\",\n" +
		"  \"type\": \"scene\",\n" +
		"  \"pointers\": [\n" +
		"    \"0,0\",\n" +
		"    \"0,1\"\n" +
		"  ],\n" +
		"  \"timestamp\": 1700000000000,\n" +
		"  \"content\": [\n" +
		"    {\n" +
		"      \"file\": \"scene.json\",\n" +
		"      \"hash\": \"bafkrei-scene\"\n" +
		"    }\n" +
		"  ]\n" +
		"}"

	if string(b) != want {
		t.Fatalf("unexpected JSON shape:\n%s", b)
	}
}

func TestSnapshot_DeploymentHistory_Decode(t *testing.T) {
	const body = `{
		"deployments": [{
			"entityType": "profile",
			"entityId": "bafkrei-a",
			"entityTimestamp": 10,
			"pointers": ["0xabc"],
			"content": [{"key": "face.png", "hash": "bafkrei-face"}],
			"auditInfo": {"localTimestamp": 42, "authChain": [{"type": "SIGNER", "payload": "0xabc"}]}
		}],
		"pagination": {"offset": 0, "limit": 500, "moreData": true, "next": "?lastId=bafkrei-a"}
	}`

	var h DeploymentHistory
	if err := json.Unmarshal([]byte(body), &h); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(h.Deployments) != 1 {
		t.Fatalf("expected 1 deployment, got %d", len(h.Deployments))
	}
	d := h.Deployments[0]
	if d.LocalTimestamp() != 42 {
		t.Fatalf("LocalTimestamp: got %d", d.LocalTimestamp())
	}
	if d.AuditInfo.AuthChain[0].Type != AuthLinkSigner {
		t.Fatalf("auth link type: got %q", d.AuditInfo.AuthChain[0].Type)
	}
	if !h.Pagination.MoreData || h.Pagination.Next != "?lastId=bafkrei-a" {
		t.Fatalf("pagination: %+v", h.Pagination)
	}
}

func TestEntityTypeValid(t *testing.T) {
	if !EntityTypeWearable.Valid() {
		t.Fatalf("wearable should be valid")
	}
	if EntityType("SCENE").Valid() {
		t.Fatalf("entity types are lowercase on the wire")
	}
}

func TestIsKind(t *testing.T) {
	base := NewTransportError("https://peer/content/contents/x", 503, nil)
	wrapped := fmt.Errorf("download: %w", base)

	if !IsKind(wrapped, KindTransport) {
		t.Fatalf("expected wrapped transport error to match")
	}
	if IsKind(wrapped, KindIntegrity) {
		t.Fatalf("unexpected kind match")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors have no kind")
	}

	var e *Error
	if !errors.As(wrapped, &e) || e.StatusCode != 503 {
		t.Fatalf("errors.As: %+v", e)
	}
	if got := base.Error(); got != "unexpected response (status 503) [https://peer/content/contents/x]" {
		t.Fatalf("Error(): %q", got)
	}
}
