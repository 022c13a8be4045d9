package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/doublegate/prortip/pkg/config"
	"github.com/doublegate/prortip/pkg/models"
)

func sampleResults() []models.Result {
	return []models.Result{
		{TargetIP: "192.0.2.2", Port: 22, Type: models.ScanConnect, State: models.StateClosed, Timestamp: time.Unix(0, 0)},
		{TargetIP: "192.0.2.1", Port: 80, Type: models.ScanConnect, State: models.StateOpen, Service: "http", Timestamp: time.Unix(0, 0)},
	}
}

func TestWriteTextSortsByHostThenPort(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, config.OutputText, sampleResults()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	firstIdx := strings.Index(out, "192.0.2.1")
	secondIdx := strings.Index(out, "192.0.2.2")

	if firstIdx == -1 || secondIdx == -1 || firstIdx > secondIdx {
		t.Errorf("expected 192.0.2.1 before 192.0.2.2, got:\n%s", out)
	}
}

func TestWriteJSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, config.OutputJSON, sampleResults()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var decoded []models.Result
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(decoded) != 2 {
		t.Fatalf("len(decoded) = %d, want 2", len(decoded))
	}

	if decoded[0].TargetIP != "192.0.2.1" {
		t.Errorf("decoded[0].TargetIP = %q, want 192.0.2.1", decoded[0].TargetIP)
	}
}

func TestWriteXMLContainsEachResult(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, config.OutputXML, sampleResults()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	if strings.Count(out, "<result ") != 2 {
		t.Errorf("expected 2 <result> elements, got:\n%s", out)
	}
}
