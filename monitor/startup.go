package monitor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
	"github.com/jacobbrewer1/cloudflare-failover/state"
	"github.com/jacobbrewer1/cloudflare-failover/telemetry"
)

// Startup reasons, reported with every startup reconciliation.
const (
	ReasonPrimaryHealthy = "primary_healthy_preferred"
	ReasonBackupOnly     = "primary_unhealthy_backup_healthy"
	ReasonBothUnhealthy  = "both_unhealthy"
)

// StartupReport describes the outcome of a startup reconciliation.
type StartupReport struct {
	RecordIP      string
	Primary       state.HealthCheck
	Backup        state.HealthCheck
	PrimaryHealth bool
	BackupHealth  bool
	Reason        string

	// TargetIP is empty when both endpoints were unhealthy.
	TargetIP string

	// Changed is true when the record was rewritten.
	Changed bool
}

// Startup probes both endpoints and points the record at the primary when it
// is healthy, or at the backup when only the backup is healthy. When neither
// answers the record is left as it is and the failover flag is synced to it.
//
// Any failure leaves the counters reset and the state persisted; the caller
// may carry on with the regular cycles.
func (r *Reconciler) Startup(ctx context.Context) (*StartupReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, err := r.startup(ctx)
	if err != nil {
		r.l.Warn("startup reconciliation failed, continuing", slog.Any(logging.KeyError, err))
		target := ""
		if report != nil {
			target = report.TargetIP
		}
		r.sink.Publish(ctx, r.event(telemetry.EventStartupFailed, r.st.CurrentIP, target, reasonOf(report), err))
		r.st.ResetCounters()
	}

	_ = r.persist(ctx)
	r.publishStatus()
	return report, err
}

func (r *Reconciler) startup(ctx context.Context) (*StartupReport, error) {
	rec, err := r.getRecord(ctx)
	if err != nil {
		return nil, err
	}

	report := &StartupReport{RecordIP: rec.Content}
	r.l.Info("startup reconciliation", slog.String(logging.KeyCurrentIP, rec.Content))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		report.Primary = r.prober.Probe(ctx, r.targets.PrimaryIP)
	}()
	go func() {
		defer wg.Done()
		report.Backup = r.prober.Probe(ctx, r.targets.BackupIP)
	}()
	wg.Wait()

	th := r.engine.Thresholds()
	report.PrimaryHealth = th.IsHealthy(report.Primary)
	report.BackupHealth = th.IsHealthy(report.Backup)

	switch {
	case report.PrimaryHealth:
		report.Reason, report.TargetIP = ReasonPrimaryHealthy, r.targets.PrimaryIP
	case report.BackupHealth:
		report.Reason, report.TargetIP = ReasonBackupOnly, r.targets.BackupIP
	default:
		report.Reason = ReasonBothUnhealthy
		r.st.CurrentIP = rec.Content
		r.st.IsFailedOver = rec.Content == r.targets.BackupIP
		r.l.Warn("both endpoints unhealthy at startup, keeping current record",
			slog.String(logging.KeyReason, report.Reason),
		)
		return report, nil
	}

	l := r.l.With(
		slog.String(logging.KeyReason, report.Reason),
		slog.String(logging.KeyTarget, report.TargetIP),
	)

	if rec.Content == report.TargetIP {
		r.st.CurrentIP = rec.Content
		r.st.IsFailedOver = rec.Content == r.targets.BackupIP
		l.Info("dns record already points at preferred target")
		return report, nil
	}

	if err := r.updateRecord(ctx, rec.ID, report.TargetIP); err != nil {
		return report, err
	}

	now := r.now()
	r.st.CurrentIP = report.TargetIP
	r.st.IsFailedOver = report.TargetIP == r.targets.BackupIP
	if r.st.IsFailedOver {
		r.st.LastFailover = &now
	} else {
		r.st.LastRestore = &now
	}
	r.st.ResetCounters()
	report.Changed = true

	l.Info("dns record switched at startup", slog.String("from_ip", rec.Content))
	r.sink.Publish(ctx, r.event(telemetry.EventStartupChange, rec.Content, report.TargetIP, report.Reason, nil))
	return report, nil
}

func reasonOf(report *StartupReport) string {
	if report == nil {
		return ""
	}
	return report.Reason
}
