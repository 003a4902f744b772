package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/service"
)

func init() {
	color.NoColor = true
}

func TestPrintSweepReport(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	printSweepReport(cmd, service.SweepReport{
		Job:       service.JobSLASweep,
		Duration:  1234567 * time.Microsecond,
		Total:     5,
		Changed:   2,
		Escalated: 1,
		Failures:  []service.CaseFailure{{CaseID: "case-9", Err: errors.New("store timeout")}},
	})

	out := buf.String()
	assert.Contains(t, out, "Sweep: "+service.JobSLASweep+" (1.235s)")
	assert.Contains(t, out, "cases:     5")
	assert.Contains(t, out, "escalated: 1")
	assert.Contains(t, out, "failed:    1")
	assert.Contains(t, out, "case-9: store timeout")
}

func TestPrintDashboard(t *testing.T) {
	var buf bytes.Buffer
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d := &service.Dashboard{
		TimeRange:      "7d",
		From:           from,
		To:             from.Add(7 * 24 * time.Hour),
		Partial:        true,
		MissingWindows: []service.Window{{From: from, To: from.Add(24 * time.Hour)}},
	}
	d.Core.TotalCases = 4
	d.Core.ResolvedCases = 1
	d.Core.ResolutionRate = 0.25
	d.Categories.CasesByCategory = map[domain.GrievanceCategory]int{
		domain.CategoryPaymentIssue: 3,
		domain.CategoryCorruption:   1,
	}
	d.Categories.ResolutionHoursByCategory = map[domain.GrievanceCategory]float64{
		domain.CategoryPaymentIssue: 30,
	}

	printDashboard(&buf, d)

	out := buf.String()
	assert.Contains(t, out, "Dashboard 7d (2024-03-01 .. 2024-03-08)")
	assert.Contains(t, out, "partial: 1 window(s) unavailable")
	assert.Contains(t, out, "resolution rate: 25.0%")
	corruption := bytes.Index(buf.Bytes(), []byte("CORRUPTION"))
	payment := bytes.Index(buf.Bytes(), []byte("PAYMENT_ISSUE"))
	require.NotEqual(t, -1, corruption)
	assert.Less(t, corruption, payment)
}

func TestSweepCommandRejectsUnknownJob(t *testing.T) {
	cmd := SweepCmd()
	cmd.SetArgs([]string{"vacuum"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sweep")
}

func TestTierLabel(t *testing.T) {
	assert.Equal(t, "BREACHED", tierLabel(service.SLATierBreached))
}
