package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dmitrijs2005/offsync/internal/api"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/services"
	"github.com/spf13/cobra"
)

func newRegisterCommand(run runFunc) *cobra.Command {
	var (
		req  api.RegisterDeviceRequest
		cfg  api.SyncConfig
		freq time.Duration
	)

	cmd := &cobra.Command{
		Use:   "register [external-id]",
		Short: "Register this device with the sync server",
		Long: `Register this device with the sync server.

The external id defaults to --device. Registering again with the same id
returns the existing device and a fresh access token.`,
		Args: cobra.MaximumNArgs(1),
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "device name")
	cmd.Flags().StringVar(&req.Platform, "platform", "", "device platform")
	cmd.Flags().StringVar(&req.AppVersion, "app-version", "", "client app version")
	cmd.Flags().StringVar(&req.TenantID, "tenant", "", "tenant id")
	cmd.Flags().BoolVar(&cfg.AutoSync, "auto-sync", true, "let the server schedule syncs")
	cmd.Flags().DurationVar(&freq, "frequency", 0, "sync frequency, e.g. 15m")
	cmd.Flags().IntVar(&cfg.MaxOfflineHours, "max-offline-hours", 0, "hours the device may stay offline")
	cmd.Flags().Int64Var(&cfg.StorageLimitBytes, "storage-limit", 0, "offline cache limit in bytes")

	cmd.RunE = run(func(ctx context.Context, a *App, args []string) error {
		req.ExternalID = a.config.DeviceID
		if len(args) == 1 {
			req.ExternalID = args[0]
		}

		fs := cmd.Flags()
		if fs.Changed("auto-sync") || fs.Changed("frequency") || fs.Changed("max-offline-hours") || fs.Changed("storage-limit") {
			cfg.SyncFrequencySeconds = int64(freq / time.Second)
			req.Config = &cfg
		}

		d, err := a.devices.Register(ctx, &req)
		if err != nil {
			return err
		}
		return a.out.print(d, []string{"ID", "EXTERNAL ID", "STATUS", "NEXT SYNC"},
			[][]string{{d.ID, d.ExternalID, d.Status, fmtTime(d.NextSyncAt)}})
	})
	return cmd
}

func newEnqueueCommand(run runFunc) *cobra.Command {
	var (
		fields      []string
		recordsFile string
		priority    string
		watermark   string
		reason      string
	)

	cmd := &cobra.Command{
		Use:   "enqueue OPERATION TABLE [RECORD]",
		Short: "Record an operation in the local outbox",
		Long: `Record an operation in the local outbox. Nothing is sent until flush or sync.

Operations: CREATE, UPDATE, DELETE, RESTORE, BULK_SYNC.

Examples:
  syncctl enqueue UPDATE orders o-1 --field total=12.5 --watermark 2026-03-01T10:00:00Z
  syncctl enqueue DELETE orders o-2 --reason duplicate
  syncctl enqueue BULK_SYNC orders --records records.json`,
		Args: cobra.RangeArgs(2, 3),
	}

	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "field as name=value, repeatable")
	cmd.Flags().StringVar(&recordsFile, "records", "", "JSON file with BULK_SYNC records")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium, high or critical")
	cmd.Flags().StringVarP(&watermark, "watermark", "w", "", "last server modification time the client saw, RFC 3339")
	cmd.Flags().StringVar(&reason, "reason", "", "DELETE reason")

	cmd.RunE = run(func(ctx context.Context, a *App, args []string) error {
		e := &models.OutboxEntry{Operation: args[0], TableName: args[1], Priority: priority, Reason: reason}
		if len(args) == 3 {
			e.RecordID = args[2]
		}

		var err error
		if e.Fields, err = parseFields(fields); err != nil {
			return err
		}
		if e.Records, err = readRecords(recordsFile); err != nil {
			return err
		}
		if e.ClientWatermark, err = parseWatermark(watermark); err != nil {
			return err
		}

		if err := a.outbox.Record(ctx, e); err != nil {
			return err
		}
		return a.out.print(e, []string{"ID", "SEQ", "OPERATION", "TABLE", "RECORD"},
			[][]string{{e.ID, strconv.FormatInt(e.Seq, 10), e.Operation, e.TableName, orDash(e.RecordID)}})
	})
	return cmd
}

func outboxRows(entries []models.OutboxEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.Seq, 10), e.Operation, e.TableName, orDash(e.RecordID),
			string(e.Status), strconv.Itoa(e.Attempts), orDash(e.LastError), fmtTime(&e.CreatedAt),
		})
	}
	return rows
}

func newOutboxCommand(run runFunc) *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "List local outbox entries, newest first",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "pending, sent or rejected")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum entries to show")

	cmd.RunE = run(func(ctx context.Context, a *App, _ []string) error {
		entries, err := a.outbox.List(ctx, models.OutboxStatus(status), limit)
		if err != nil {
			return err
		}
		return a.out.print(entries, []string{"SEQ", "OPERATION", "TABLE", "RECORD", "STATUS", "ATTEMPTS", "LAST ERROR", "CREATED"},
			outboxRows(entries))
	})
	return cmd
}

type flushView struct {
	Sent      int    `json:"sent"`
	Rejected  int    `json:"rejected"`
	Remaining int    `json:"remaining"`
	StoppedBy string `json:"stopped_by,omitempty"`
}

func printFlush(a *App, r *services.FlushReport) error {
	v := flushView{Sent: r.Sent, Rejected: r.Rejected, Remaining: r.Remaining}
	if r.Err != nil {
		v.StoppedBy = r.Err.Error()
	}
	return a.out.print(v, []string{"SENT", "REJECTED", "REMAINING", "STOPPED BY"},
		[][]string{{strconv.Itoa(v.Sent), strconv.Itoa(v.Rejected), strconv.Itoa(v.Remaining), orDash(v.StoppedBy)}})
}

func newFlushCommand(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Push pending outbox entries to the server",
		Long: `Push pending outbox entries to the server in the order they were recorded.

Entries the server refuses are marked rejected. When the server cannot be
reached the flush stops and the rest stays pending for the next attempt.`,
		Args: cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *App, _ []string) error {
			r, err := a.outbox.Flush(ctx)
			if err != nil {
				return err
			}
			return printFlush(a, r)
		}),
	}
}

func printRound(a *App, r *api.RunSyncRoundResponse) error {
	c := r.Counts
	return a.out.print(r, []string{"SESSION", "COMPLETED", "FAILED", "CONFLICT", "SKIPPED", "EXHAUSTED", "SUCCESS RATE", "UNRESOLVED"},
		[][]string{{
			r.Session.ID, strconv.Itoa(c.Completed), strconv.Itoa(c.Failed), strconv.Itoa(c.Conflict),
			strconv.Itoa(c.Skipped), strconv.Itoa(c.Exhausted), fmt.Sprintf("%.2f", r.SuccessRate),
			strconv.Itoa(len(r.UnresolvedConflicts)),
		}})
}

func newSyncCommand(run runFunc) *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Flush the outbox and run a sync round on the server",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().IntVarP(&batch, "batch", "b", 0, "queue items to drain, 0 for the server default")

	cmd.RunE = run(func(ctx context.Context, a *App, _ []string) error {
		r, err := a.outbox.Sync(ctx, batch)
		if err != nil {
			if r != nil && r.Flush != nil {
				_ = printFlush(a, r.Flush)
			}
			return err
		}
		return printRound(a, r.Round)
	})
	return cmd
}

func newWatchCommand(run runFunc) *cobra.Command {
	var (
		interval time.Duration
		batch    int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync periodically until interrupted",
		Long: `Sync periodically until interrupted.

Each tick checks the server first. While it is unreachable operations keep
accumulating in the outbox and are pushed on the first tick it answers.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", 30*time.Second, "time between sync attempts")
	cmd.Flags().IntVarP(&batch, "batch", "b", 0, "queue items to drain per round")

	cmd.RunE = run(func(ctx context.Context, a *App, _ []string) error {
		if interval <= 0 {
			return fmt.Errorf("interval must be positive")
		}
		if _, err := a.requireDevice(); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a.Watch(ctx, interval, batch, func(r *services.SyncReport, err error) {
			if err == nil {
				_ = printRound(a, r.Round)
			}
		})
		return nil
	})
	return cmd
}

func newStatusCommand(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show device identity, outbox counts and server reachability",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *App, _ []string) error {
			st, err := a.devices.Status(ctx)
			if err != nil {
				return err
			}
			mode := ModeOffline
			if st.Online {
				mode = ModeOnline
			}
			return a.out.print(st, []string{"DEVICE", "EXTERNAL ID", "MODE", "LAST SYNC", "PENDING", "SENT", "REJECTED"},
				[][]string{{
					orDash(st.DeviceID), orDash(st.ExternalID), string(mode), fmtTime(st.LastSyncAt),
					strconv.Itoa(st.Outbox[models.OutboxPending]),
					strconv.Itoa(st.Outbox[models.OutboxSent]),
					strconv.Itoa(st.Outbox[models.OutboxRejected]),
				}})
		}),
	}
}

func newQueueCommand(run runFunc) *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List this device's server-side queue items",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "pending, syncing, completed, failed or conflict")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum items to show")

	cmd.RunE = run(func(ctx context.Context, a *App, _ []string) error {
		deviceID, err := a.requireDevice()
		if err != nil {
			return err
		}
		items, err := a.client.ListQueueItems(ctx, &api.ListQueueItemsRequest{DeviceID: deviceID, Status: status, Limit: limit})
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(items))
		for _, it := range items {
			rows = append(rows, []string{
				strconv.FormatInt(it.Seq, 10), it.ID, it.Operation, it.TableName, orDash(it.RecordID),
				it.Priority, it.Status, fmt.Sprintf("%d/%d", it.RetryCount, it.MaxRetries), orDash(it.LastError),
			})
		}
		return a.out.print(items, []string{"SEQ", "ID", "OPERATION", "TABLE", "RECORD", "PRIORITY", "STATUS", "RETRIES", "LAST ERROR"}, rows)
	})
	return cmd
}

func conflictRows(conflicts []api.Conflict) [][]string {
	rows := make([][]string, 0, len(conflicts))
	for _, c := range conflicts {
		resolved := "no"
		if c.Resolved {
			resolved = "yes"
		}
		rows = append(rows, []string{
			c.ID, c.TableName, c.RecordID, c.Type, orDash(c.Strategy),
			strconv.FormatBool(c.RequiresManualReview), resolved, fmtTime(&c.CreatedAt),
		})
	}
	return rows
}

var conflictHeader = []string{"ID", "TABLE", "RECORD", "TYPE", "STRATEGY", "MANUAL", "RESOLVED", "CREATED"}

func newConflictsCommand(run runFunc) *cobra.Command {
	var (
		all   bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List this device's conflicts",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&all, "all", false, "include resolved conflicts")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum conflicts to show")

	cmd.RunE = run(func(ctx context.Context, a *App, _ []string) error {
		deviceID, err := a.requireDevice()
		if err != nil {
			return err
		}
		conflicts, err := a.client.ListConflicts(ctx, &api.ListConflictsRequest{DeviceID: deviceID, UnresolvedOnly: !all, Limit: limit})
		if err != nil {
			return err
		}
		return a.out.print(conflicts, conflictHeader, conflictRows(conflicts))
	})
	return cmd
}

func newResolveCommand(run runFunc) *cobra.Command {
	var (
		strategy string
		notes    string
		fields   []string
	)

	cmd := &cobra.Command{
		Use:   "resolve CONFLICT_ID",
		Short: "Resolve a conflict",
		Long: `Resolve a conflict with one of the strategies client_wins, server_wins,
merge or latest_timestamp. For merge, --field values override the merged
result.`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "resolution strategy")
	cmd.Flags().StringVar(&notes, "notes", "", "resolution notes")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "merged field as name=value, repeatable")
	_ = cmd.MarkFlagRequired("strategy")

	cmd.RunE = run(func(ctx context.Context, a *App, args []string) error {
		if _, err := a.requireDevice(); err != nil {
			return err
		}
		merged, err := parseFields(fields)
		if err != nil {
			return err
		}
		c, err := a.client.ResolveConflict(ctx, &api.ResolveConflictRequest{
			ConflictID:   args[0],
			Strategy:     strategy,
			Notes:        notes,
			MergedFields: merged,
		})
		if err != nil {
			return err
		}
		return a.out.print(c, conflictHeader, conflictRows([]api.Conflict{*c}))
	})
	return cmd
}

func newSessionsCommand(run runFunc) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List this device's sync sessions, newest first",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum sessions to show")

	cmd.RunE = run(func(ctx context.Context, a *App, _ []string) error {
		deviceID, err := a.requireDevice()
		if err != nil {
			return err
		}
		sessions, err := a.client.ListSessions(ctx, &api.ListSessionsRequest{DeviceID: deviceID, Limit: limit})
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(sessions))
		for _, s := range sessions {
			rows = append(rows, []string{
				s.ID, s.Type, s.Status, strconv.Itoa(s.TotalOperations), strconv.Itoa(s.CompletedOperations),
				strconv.Itoa(s.FailedOperations), strconv.Itoa(s.ConflictOperations),
				fmt.Sprintf("%.2f", s.SuccessRate), fmtTime(&s.StartedAt), fmtTime(s.CompletedAt),
			})
		}
		return a.out.print(sessions, []string{"ID", "TYPE", "STATUS", "TOTAL", "DONE", "FAILED", "CONFLICT", "SUCCESS", "STARTED", "COMPLETED"}, rows)
	})
	return cmd
}
