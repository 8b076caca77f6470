package enginectl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/louisbranch/enginectl/internal/engine/command"
	"github.com/louisbranch/enginectl/internal/engine/metrics"
	apperrors "github.com/louisbranch/enginectl/internal/platform/errors"
	"github.com/louisbranch/enginectl/internal/platform/timeouts"
	collectorapp "github.com/louisbranch/enginectl/internal/services/collector/app"
	"github.com/louisbranch/enginectl/internal/services/collector/storage"
)

type commandView struct {
	Family      string `json:"family"`
	Name        string `json:"name"`
	Wire        string `json:"wire"`
	Description string `json:"description,omitempty"`
}

func newCommandView(id command.Identifier) commandView {
	return commandView{
		Family:      string(id.Family()),
		Name:        id.Name(),
		Wire:        id.WireValue(),
		Description: metrics.Describe(id),
	}
}

func (r runner) commands(args []string) error {
	fs := r.subFlags("commands")
	family := fs.String("family", "", "only list this family")
	if err := parseSubFlags(fs, args); err != nil {
		return err
	}
	if err := expectArgs("commands", fs.Args(), 0, 0); err != nil {
		return err
	}

	families := command.Families()
	if f := strings.TrimSpace(*family); f != "" {
		families = []command.Family{command.Family(f)}
	}
	views := []commandView{}
	for _, f := range families {
		for _, id := range command.All(f) {
			views = append(views, newCommandView(id))
		}
	}

	if r.cfg.JSONOutput {
		return r.writeJSON(views)
	}
	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FAMILY\tNAME\tWIRE\tDESCRIPTION")
	for _, view := range views {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", view.Family, view.Name, view.Wire, view.Description)
	}
	return w.Flush()
}

func (r runner) resolve(args []string) error {
	if err := expectArgs("resolve", args, 2, 2); err != nil {
		return err
	}
	id, err := resolveArgs(args[0], args[1])
	if err != nil {
		return err
	}
	if r.cfg.JSONOutput {
		return r.writeJSON(newCommandView(id))
	}
	fmt.Fprintln(r.out, id.WireValue())
	return nil
}

func (r runner) call(ctx context.Context, args []string) error {
	if err := expectArgs("call", args, 2, 3); err != nil {
		return err
	}
	id, err := resolveArgs(args[0], args[1])
	if err != nil {
		return err
	}
	var params json.RawMessage
	if len(args) == 3 {
		params = json.RawMessage(args[2])
		if !json.Valid(params) {
			return usageError("call: parameters must be valid JSON")
		}
	}

	engine, err := r.deps.newEngine(r.cfg)
	if err != nil {
		return err
	}
	// Metric commands go through the manager so GET and ENABLE parameters
	// are validated before anything reaches the engine.
	var data json.RawMessage
	if id.Family() == command.FamilyMetric {
		var manager *metrics.Manager
		if manager, err = metrics.NewManager(engine); err != nil {
			return err
		}
		data, err = manager.Call(ctx, id.Name(), params)
	} else {
		data, err = engine.Call(ctx, id, params)
	}
	if err != nil {
		return err
	}
	return r.writeRaw(data)
}

func (r runner) metrics(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("metrics: subcommand is required (dump, enable, list, get, test)")
	}
	name, rest := strings.ToUpper(args[0]), args[1:]
	id, err := command.Resolve(command.FamilyMetric, name)
	if err != nil {
		return err
	}

	fs := r.subFlags("metrics " + args[0])
	var scope, instrument *string
	var status *bool
	if id == command.MetricGet || id == command.MetricEnable {
		scope = fs.String("scope", "", "metrics scope name")
		instrument = fs.String("instrument", "", "instrument name")
	}
	if id == command.MetricEnable {
		status = fs.Bool("status", true, "enable (true) or disable (false) the instrument")
	}
	if err := parseSubFlags(fs, rest); err != nil {
		return err
	}
	if err := expectArgs("metrics "+args[0], fs.Args(), 0, 0); err != nil {
		return err
	}

	engine, err := r.deps.newEngine(r.cfg)
	if err != nil {
		return err
	}
	manager, err := metrics.NewManager(engine)
	if err != nil {
		return err
	}

	var data json.RawMessage
	switch id {
	case command.MetricDump:
		data, err = manager.Dump(ctx)
	case command.MetricList:
		data, err = manager.List(ctx)
	case command.MetricTest:
		data, err = manager.Test(ctx)
	case command.MetricGet:
		data, err = manager.Get(ctx, metrics.Instrument{Scope: *scope, Instrument: *instrument})
	case command.MetricEnable:
		err = manager.Enable(ctx, metrics.EnableParams{Scope: *scope, Instrument: *instrument, Status: *status})
		if err == nil && !r.cfg.JSONOutput {
			fmt.Fprintf(r.out, "%s/%s enabled=%t\n", strings.TrimSpace(*scope), strings.TrimSpace(*instrument), *status)
			return nil
		}
		data = json.RawMessage(`{}`)
	}
	if err != nil {
		return err
	}
	return r.writeRaw(data)
}

// maxSnapshotLimit caps one snapshots listing.
const maxSnapshotLimit = 1000

type snapshotView struct {
	ID      int64           `json:"id"`
	Command string          `json:"command"`
	TakenAt time.Time       `json:"taken_at"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func newSnapshotView(snapshot storage.Snapshot) snapshotView {
	return snapshotView{
		ID:      snapshot.ID,
		Command: snapshot.Command,
		TakenAt: snapshot.TakenAt,
		Payload: snapshot.Payload,
		Error:   snapshot.Error,
	}
}

func (r runner) snapshots(ctx context.Context, args []string) error {
	fs := r.subFlags("snapshots")
	limit := fs.Int("limit", 20, "maximum snapshots to list")
	id := fs.Int64("id", 0, "show one snapshot with its payload")
	if err := parseSubFlags(fs, args); err != nil {
		return err
	}
	if err := expectArgs("snapshots", fs.Args(), 0, 0); err != nil {
		return err
	}
	if *id == 0 && *limit <= 0 {
		return usageError("snapshots: -limit must be > 0")
	}
	*limit = min(*limit, maxSnapshotLimit)

	store, err := r.deps.openSnapshots(r.cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(r.errOut, "Error: close snapshot store: %v\n", closeErr)
		}
	}()

	if *id != 0 {
		snapshot, err := store.GetSnapshot(ctx, *id)
		if err != nil {
			return err
		}
		if r.cfg.JSONOutput {
			return r.writeJSON(newSnapshotView(snapshot))
		}
		fmt.Fprintf(r.out, "id: %d\ncommand: %s\ntaken_at: %s\n", snapshot.ID, snapshot.Command, snapshot.TakenAt.Format(time.RFC3339))
		if snapshot.Failed() {
			fmt.Fprintf(r.out, "error: %s\n", snapshot.Error)
			return nil
		}
		return r.writeRaw(snapshot.Payload)
	}

	snapshots, err := store.ListSnapshots(ctx, *limit)
	if err != nil {
		return err
	}
	if r.cfg.JSONOutput {
		views := make([]snapshotView, 0, len(snapshots))
		for _, snapshot := range snapshots {
			views = append(views, newSnapshotView(snapshot))
		}
		return r.writeJSON(views)
	}
	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTAKEN AT\tCOMMAND\tOUTCOME")
	for _, snapshot := range snapshots {
		outcome := "ok (" + strconv.Itoa(len(snapshot.Payload)) + " bytes)"
		if snapshot.Failed() {
			outcome = "error: " + snapshot.Error
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", snapshot.ID, snapshot.TakenAt.Format(time.RFC3339), snapshot.Command, outcome)
	}
	return w.Flush()
}

func (r runner) healthcheck(ctx context.Context, args []string) error {
	fs := r.subFlags("healthcheck")
	service := fs.String("service", collectorapp.EngineHealthService, "gRPC health service name")
	if err := parseSubFlags(fs, args); err != nil {
		return err
	}
	if err := expectArgs("healthcheck", fs.Args(), 0, 0); err != nil {
		return err
	}
	timeout := r.cfg.Timeout
	if timeout <= 0 {
		timeout = timeouts.GRPCDial
	}
	if err := r.deps.checkHealth(ctx, r.cfg.CollectorAddr, *service, timeout); err != nil {
		return apperrors.Wrap(apperrors.CodeEngineUnavailable, "healthcheck", err)
	}
	if r.cfg.JSONOutput {
		return r.writeJSON(map[string]string{"addr": r.cfg.CollectorAddr, "service": *service, "status": "SERVING"})
	}
	fmt.Fprintf(r.out, "%s %q SERVING\n", r.cfg.CollectorAddr, *service)
	return nil
}

func resolveArgs(family, name string) (command.Identifier, error) {
	return command.Resolve(
		command.Family(strings.TrimSpace(family)),
		strings.ToUpper(strings.TrimSpace(name)),
	)
}

func (r runner) writeJSON(value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Fprintln(r.out, string(payload))
	return nil
}

// writeRaw prints an engine payload, indented unless JSON output was asked
// for.
func (r runner) writeRaw(data json.RawMessage) error {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	if r.cfg.JSONOutput {
		fmt.Fprintln(r.out, string(data))
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return apperrors.Wrap(apperrors.CodeEngineProtocol, "engine returned invalid JSON", err)
	}
	fmt.Fprintln(r.out, buf.String())
	return nil
}
