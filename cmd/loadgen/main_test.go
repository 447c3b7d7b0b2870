package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadClaimsCSV(t *testing.T) {
	input := `Claimant,Vendor,Date,Total,Suspicious
alice@example.com,City Clinic,2024-01-10,240,0
bob@example.com,Corner Pharmacy,2024-01-11,not-a-number,1
bob@example.com,Corner Pharmacy,2024-01-12,60000,1
carol@example.com,Dental Care,2024-01-13,99.5,0
`

	rows, err := readClaimsCSV(strings.NewReader(input), 0)
	if err != nil {
		t.Fatalf("readClaimsCSV failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, malformed one skipped, got %d", len(rows))
	}
	if rows[1].Claimant != "bob@example.com" || rows[1].Total != 60000 || !rows[1].Suspicious {
		t.Errorf("unexpected row %+v", rows[1])
	}
	if !rows[0].Labeled || rows[0].Suspicious {
		t.Errorf("expected labeled clean row, got %+v", rows[0])
	}

	t.Run("Limit", func(t *testing.T) {
		rows, err := readClaimsCSV(strings.NewReader(input), 1)
		if err != nil {
			t.Fatalf("readClaimsCSV failed: %v", err)
		}
		if len(rows) != 1 {
			t.Errorf("expected 1 row, got %d", len(rows))
		}
	})

	t.Run("Unlabeled", func(t *testing.T) {
		rows, err := readClaimsCSV(strings.NewReader("claimant,vendor,date,total\na@x.com,V,2024-01-01,10\n"), 0)
		if err != nil {
			t.Fatalf("readClaimsCSV failed: %v", err)
		}
		if len(rows) != 1 || rows[0].Labeled {
			t.Errorf("expected one unlabeled row, got %+v", rows)
		}
	})

	t.Run("MissingColumn", func(t *testing.T) {
		if _, err := readClaimsCSV(strings.NewReader("claimant,vendor,total\n"), 0); err == nil {
			t.Error("expected error for missing date column")
		}
	})
}

func TestRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Caller-ID") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var resp SubmitResponse
		resp.ClaimID = "claim-1"
		resp.Claim.Status = "Pending"
		resp.FraudDetection.RiskLevel = "low"
		if req.ReceiptData.Total > 50000 {
			resp.Claim.Status = "Flagged"
			resp.FraudDetection.RiskLevel = "high"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	rows := []ClaimRow{
		{Claimant: "a@x.com", Vendor: "V", Date: "2024-01-01", Total: 240, Labeled: true},
		{Claimant: "b@x.com", Vendor: "V", Date: "2024-01-01", Total: 60000, Labeled: true, Suspicious: true},
		{Claimant: "c@x.com", Vendor: "V", Date: "2024-01-01", Total: 300, Labeled: true, Suspicious: true},
		{Claimant: "", Vendor: "V", Date: "2024-01-01", Total: 10},
	}

	m := run(rows, srv.URL, "X-Caller-ID", 2, false)

	if m.TotalProcessed != 4 || m.TotalErrors != 1 {
		t.Errorf("expected 4 processed with 1 error, got %d and %d", m.TotalProcessed, m.TotalErrors)
	}
	if m.TruePositives != 1 || m.TrueNegatives != 1 || m.FalseNegatives != 1 || m.FalsePositives != 0 {
		t.Errorf("unexpected confusion matrix %+v", m)
	}
	if m.byStatus["Flagged"] != 1 || m.byStatus["Pending"] != 2 {
		t.Errorf("unexpected status counts %v", m.byStatus)
	}
}
