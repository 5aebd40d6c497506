package main

import (
	"context"
	goerrors "errors"
	goflag "flag"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/cli-runtime/pkg/printers"
	"k8s.io/client-go/dynamic"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/klogr"

	"github.com/namix-io/hierarchy-engine/pkg/cache"
	"github.com/namix-io/hierarchy-engine/pkg/diff"
	"github.com/namix-io/hierarchy-engine/pkg/engine"
	"github.com/namix-io/hierarchy-engine/pkg/gateway"
	"github.com/namix-io/hierarchy-engine/pkg/manifest"
	"github.com/namix-io/hierarchy-engine/pkg/metrics"
	"github.com/namix-io/hierarchy-engine/pkg/render"
	"github.com/namix-io/hierarchy-engine/pkg/source"
	"github.com/namix-io/hierarchy-engine/pkg/utils/errors"
	"github.com/namix-io/hierarchy-engine/pkg/utils/tracing"
)

const (
	traceLog  = "log"
	traceOtel = "otel"
)

// ReconcileRunner holds the flags of the reconcile command
type ReconcileRunner struct {
	Command     *cobra.Command
	ioStreams   genericclioptions.IOStreams
	configFlags *genericclioptions.ConfigFlags
	log         logr.Logger

	mode          string
	source        string
	name          string
	destServer    string
	destNamespace string
	automated     bool
	prune         bool
	selfHeal      bool
	interval      time.Duration
	workers       int
	applyTimeout  time.Duration
	maxRetries    int
	backoffBase   time.Duration
	backoffMax    time.Duration
	statePath     string
	showDiff      bool
	metricsAddr   string
	trace         string
	kube          bool

	errOutLock sync.Mutex

	// newGateway creates the gateway used without --kube
	newGateway func() gateway.Gateway
}

// NewReconcileRunner creates the runner and its cobra command
func NewReconcileRunner(ioStreams genericclioptions.IOStreams) *ReconcileRunner {
	r := &ReconcileRunner{
		ioStreams:   ioStreams,
		configFlags: genericclioptions.NewConfigFlags(true),
		log:         klogr.New(),
		newGateway: func() gateway.Gateway {
			return gateway.NewMemoryGateway()
		},
	}
	cmd := &cobra.Command{
		Use:   "reconcile --mode=aggregator|generator --source=PATH",
		Short: "Render a manifest hierarchy and converge its targets",
		Example: `  # Render the guestbook once with the generator strategy against an in-memory cluster
  reconcile --mode=generator --source=examples/guestbook/generator.yaml

  # Reconcile the app-of-apps every 30 seconds against the current kube context
  reconcile --mode=aggregator --source=examples/guestbook/app-of-apps.yaml --kube --interval=30s`,
		Args: func(cmd *cobra.Command, args []string) error {
			return errors.WithExitCode(cobra.NoArgs(cmd, args), errors.ExitInvalidArguments)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          r.RunE,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.WithExitCode(err, errors.ExitInvalidArguments)
	})

	flags := cmd.Flags()
	flags.StringVar(&r.mode, "mode", "", fmt.Sprintf("Render strategy, one of %s or %s", render.ModeAggregator, render.ModeGenerator))
	flags.StringVar(&r.source, "source", "", "Path of the parent manifest")
	flags.StringVar(&r.name, "name", "", "Name of the intent, defaults to the base name of the source")
	flags.StringVar(&r.destServer, "dest-server", "https://kubernetes.default.svc", "Default destination server")
	flags.StringVar(&r.destNamespace, "dest-namespace", "default", "Default destination namespace")
	flags.BoolVar(&r.automated, "automated", true, "Apply computed changes, otherwise only report them")
	flags.BoolVar(&r.prune, "prune", false, "Delete resources that are no longer rendered")
	flags.BoolVar(&r.selfHeal, "self-heal", false, "Compare with the live state instead of the last applied state")
	flags.DurationVar(&r.interval, "interval", 0, "Poll interval; a single cycle runs if not set")
	flags.IntVar(&r.workers, "workers", 4, "Number of targets processed concurrently")
	flags.DurationVar(&r.applyTimeout, "apply-timeout", 30*time.Second, "Timeout of a single apply attempt")
	flags.IntVar(&r.maxRetries, "max-retries", 5, "Number of retries of transient apply failures")
	flags.DurationVar(&r.backoffBase, "backoff-base", time.Second, "Initial delay between apply retries")
	flags.DurationVar(&r.backoffMax, "backoff-max", time.Minute, "Maximum delay between apply retries")
	flags.StringVar(&r.statePath, "state", "", "File persisting the observed state between runs")
	flags.BoolVar(&r.showDiff, "show-diff", false, "Print the diff of every target")
	flags.StringVar(&r.metricsAddr, "metrics-addr", "", "Address serving prometheus metrics, e.g. :8080")
	flags.StringVar(&r.trace, "trace", "", fmt.Sprintf("Tracing backend, one of %s or %s", traceLog, traceOtel))
	flags.BoolVar(&r.kube, "kube", false, "Apply to the cluster selected by the kube flags instead of an in-memory cluster")
	r.configFlags.AddFlags(cmd.PersistentFlags())

	klogFlags := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	r.Command = cmd
	return r
}

func (r *ReconcileRunner) validate() error {
	if _, err := render.ParseMode(r.mode); err != nil {
		return err
	}
	switch {
	case r.source == "":
		return goerrors.New("--source is required")
	case r.interval < 0:
		return goerrors.New("--interval must not be negative")
	case r.workers < 1:
		return goerrors.New("--workers must be positive")
	case r.maxRetries < 0:
		return goerrors.New("--max-retries must not be negative")
	case r.backoffBase <= 0 || r.backoffMax < r.backoffBase:
		return goerrors.New("--backoff-base must be positive and not exceed --backoff-max")
	case r.trace != "" && r.trace != traceLog && r.trace != traceOtel:
		return fmt.Errorf("unknown --trace %q", r.trace)
	}
	return nil
}

func (r *ReconcileRunner) RunE(cmd *cobra.Command, _ []string) error {
	if err := r.validate(); err != nil {
		return errors.WithExitCode(err, errors.ExitInvalidArguments)
	}
	mode, _ := render.ParseMode(r.mode)
	abs, err := filepath.Abs(r.source)
	if err != nil {
		return errors.WithExitCode(err, errors.ExitInvalidArguments)
	}
	intent := manifest.Intent{
		Name:        r.name,
		Revision:    1,
		Source:      manifest.ManifestSource{RepoURL: "file://" + filepath.ToSlash(filepath.Dir(abs)), Path: filepath.Base(abs)},
		Destination: manifest.Destination{Server: r.destServer, Namespace: r.destNamespace},
		SyncPolicy:  manifest.SyncPolicy{Automated: r.automated, Prune: r.prune, SelfHeal: r.selfHeal},
	}
	if intent.Name == "" {
		intent.Name = strings.TrimSuffix(intent.Source.Path, filepath.Ext(intent.Source.Path))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	strategy, err := render.NewStrategy(mode, source.NewFSReader(filepath.Dir(abs)), render.WithLogr(r.log), render.WithParallelism(r.workers))
	if err != nil {
		return err
	}
	gw, err := r.gateway()
	if err != nil {
		return err
	}
	store := cache.NewMemoryStore(cache.WithLogr(r.log))
	if r.statePath != "" {
		if store, err = cache.NewFileStore(r.statePath, cache.WithLogr(r.log)); err != nil {
			return err
		}
	}
	opts := []engine.Option{
		engine.WithLogger(r.log),
		engine.WithStore(store),
		engine.WithParallelism(r.workers),
		engine.WithApplyTimeout(r.applyTimeout),
		engine.WithMaxRetries(r.maxRetries),
		engine.WithBackoff(wait.Backoff{Duration: r.backoffBase, Factor: 2, Jitter: 0.1, Steps: r.maxRetries + 1, Cap: r.backoffMax}),
		engine.WithPollInterval(r.interval),
		engine.WithTracer(r.tracer()),
		engine.WithDiffOptions(diff.WithNormalizer(diff.GetKnownTypesNormalizer())),
	}
	if r.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, engine.WithMetrics(metrics.New(reg)))
		shutdown := r.serveMetrics(reg)
		defer shutdown()
	}
	unsubscribe := store.OnStateUpdated(r.stateUpdated)
	defer unsubscribe()
	e := engine.NewEngine(strategy, gw, opts...)
	e.Submit(intent)

	if r.interval == 0 {
		res, err := e.ReconcileIntent(ctx, intent.Name)
		if err != nil {
			return err
		}
		r.print(res)
		return exitError(res)
	}

	var last *engine.IntentResult
	e.OnIntentReconciled(func(res *engine.IntentResult) {
		r.print(res)
		last = res
	})
	if err := e.Run(ctx); err != nil {
		return err
	}
	if last == nil {
		return errors.WithExitCode(goerrors.New("interrupted before the first cycle completed"), errors.ExitNotConverged)
	}
	return exitError(last)
}

func (r *ReconcileRunner) gateway() (gateway.Gateway, error) {
	if !r.kube {
		return r.newGateway(), nil
	}
	config, err := r.configFlags.ToRESTConfig()
	if err != nil {
		return nil, err
	}
	mapper, err := r.configFlags.ToRESTMapper()
	if err != nil {
		return nil, err
	}
	client, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, err
	}
	return gateway.NewKubeGateway(client, mapper, gateway.WithKubeLogr(r.log)), nil
}

func (r *ReconcileRunner) tracer() tracing.Tracer {
	switch r.trace {
	case traceLog:
		return tracing.NewLoggingTracer(r.log)
	case traceOtel:
		return tracing.NewOpenTelemetryTracer(otel.Tracer("github.com/namix-io/hierarchy-engine"))
	}
	return tracing.NewTracerFromEnv(r.log)
}

func (r *ReconcileRunner) serveMetrics(reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: r.metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
			r.log.Error(err, "Metrics server failed", "addr", r.metricsAddr)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

// stateUpdated reports applied and pruned targets on the error stream as workers complete them
func (r *ReconcileRunner) stateUpdated(newState *cache.ObservedState, oldState *cache.ObservedState) {
	r.errOutLock.Lock()
	defer r.errOutLock.Unlock()
	switch {
	case newState == nil:
		_, _ = fmt.Fprintf(r.ioStreams.ErrOut, "pruned %s\n", oldState.Identity.String())
	case oldState == nil || oldState.Revision != newState.Revision:
		_, _ = fmt.Fprintf(r.ioStreams.ErrOut, "applied %s at %s\n", newState.Identity.String(), newState.Revision)
	}
}

func (r *ReconcileRunner) print(res *engine.IntentResult) {
	w := printers.GetNewTabWriter(r.ioStreams.Out)
	_, _ = fmt.Fprintf(w, "NAME\tSTATUS\tREVISION\tMESSAGE\n")
	printResult(w, res.Parent)
	for _, child := range res.Children {
		printResult(w, child)
	}
	_ = w.Flush()
	if !r.showDiff {
		return
	}
	for _, child := range res.Children {
		if child.Diff == nil || child.Diff.Kind != diff.Changed {
			continue
		}
		if text, err := diff.TextDiff(child.Diff); err != nil {
			r.log.Error(err, "Failed to render diff", "identity", child.Identity.String())
		} else {
			_, _ = fmt.Fprint(r.ioStreams.Out, text)
		}
	}
}

func printResult(w io.Writer, res engine.SyncResult) {
	revision := res.Revision
	if len(revision) > 12 {
		revision = revision[:12]
	}
	name := res.Name
	if res.Orphan {
		name += " (orphan)"
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, res.Status, revision, strings.ReplaceAll(res.Message, "\n", " "))
}

// exitError maps the intent status to the exit code of the command
func exitError(res *engine.IntentResult) error {
	var failed, pending []error
	for _, child := range res.Children {
		switch child.Status {
		case engine.StatusError:
			failed = append(failed, fmt.Errorf("%s: %s", child.Name, child.Message))
		case engine.StatusSynced:
		default:
			pending = append(pending, fmt.Errorf("%s is %s", child.Name, child.Status))
		}
	}
	switch {
	case len(failed) > 0:
		return errors.WithExitCode(fmt.Errorf("%d targets failed: %w", len(failed), utilerrors.NewAggregate(failed)), errors.ExitError)
	case res.Status != engine.StatusSynced:
		return errors.WithExitCode(fmt.Errorf("intent %s is %s", res.Intent.Name, res.Status), errors.ExitNotConverged)
	case len(pending) > 0:
		return errors.WithExitCode(fmt.Errorf("intent %s has not converged: %w", res.Intent.Name, utilerrors.NewAggregate(pending)), errors.ExitNotConverged)
	}
	return nil
}
