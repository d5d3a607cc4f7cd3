package app

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keelworks/tweakctl/internal/catalog"
	"github.com/keelworks/tweakctl/internal/output"
	"github.com/keelworks/tweakctl/internal/queue"
)

var (
	queueAddFlagParams []string
	queueRetryFlagAll  bool
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the maintenance task queue",
	Long: `Queue long-running maintenance tasks. Tasks run strictly one at a time;
the queue survives restarts, and a task interrupted by a crash is retried
on the next run.

Examples:
  tweakctl queue add cleanup-disk
  tweakctl queue add debloat --param KeepStore=false
  tweakctl queue list
  tweakctl queue run`,
}

var queueAddCmd = &cobra.Command{
	Use:   "add <task-id>",
	Short: "Enqueue a maintenance task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeQueue, err := openQueue()
		if err != nil {
			return err
		}
		defer closeQueue()

		params, err := parseParams(queueAddFlagParams)
		if err != nil {
			return err
		}

		op, err := q.Enqueue(args[0], params)
		if err != nil {
			return err
		}
		fmt.Printf("Queued %s as %s\n", op.TaskID, op.ID)
		warnIfDegraded(q)
		return nil
	},
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued operations in submission order",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeQueue, err := openQueue()
		if err != nil {
			return err
		}
		defer closeQueue()

		fmt.Print(output.RenderQueueTable(q.Operations()))
		warnIfDegraded(q)
		return nil
	},
}

var queueCancelCmd = &cobra.Command{
	Use:   "cancel <operation-id>",
	Short: "Cancel a pending operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeQueue, err := openQueue()
		if err != nil {
			return err
		}
		defer closeQueue()

		if err := q.Cancel(args[0]); err != nil {
			return err
		}
		fmt.Printf("Cancelled %s\n", args[0])
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry [operation-id]",
	Short: "Requeue a failed operation, or all with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeQueue, err := openQueue()
		if err != nil {
			return err
		}
		defer closeQueue()

		if queueRetryFlagAll {
			if len(args) > 0 {
				return fmt.Errorf("cannot combine --all with an operation id")
			}
			count := q.RetryFailed()
			fmt.Printf("Requeued %d failed operations\n", count)
			return nil
		}
		if len(args) == 0 {
			return fmt.Errorf("specify an operation id or --all")
		}
		if err := q.Retry(args[0]); err != nil {
			return err
		}
		fmt.Printf("Requeued %s\n", args[0])
		return nil
	},
}

var queueRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run queued operations until the queue is empty",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeQueue, err := openQueue()
		if err != nil {
			return err
		}
		defer closeQueue()

		pending := 0
		for _, op := range q.Operations() {
			if op.Status == queue.StatusPending {
				pending++
			}
		}
		if pending == 0 {
			fmt.Println("Nothing to run.")
			return nil
		}
		fmt.Printf("Running %d queued operations...\n\n", pending)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := q.Drain(ctx); err != nil {
			return err
		}

		fmt.Print(output.RenderQueueTable(q.Operations()))
		warnIfDegraded(q)

		for _, op := range q.Operations() {
			if op.Status == queue.StatusFailed {
				return fmt.Errorf("some operations failed; see 'tweakctl queue list'")
			}
		}
		return nil
	},
}

func init() {
	queueAddCmd.Flags().StringArrayVar(&queueAddFlagParams, "param", nil, "script parameter override as Name=Value (repeatable)")
	queueRetryCmd.Flags().BoolVar(&queueRetryFlagAll, "all", false, "requeue every failed operation")

	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueCancelCmd)
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.AddCommand(queueRunCmd)
	RootCmd.AddCommand(queueCmd)
}

// openQueue wires the queue to its catalog, runner, and SQLite store. The
// guard policy comes from each task's guard declaration in the catalog.
func openQueue() (*queue.Queue, func(), error) {
	paths, err := getPaths()
	if err != nil {
		return nil, nil, err
	}
	cat, err := loadCatalog(paths)
	if err != nil {
		return nil, nil, err
	}
	store, err := queue.NewSQLiteStore(paths.QueueDB())
	if err != nil {
		return nil, nil, err
	}

	q, err := queue.New(cat, newRunner(paths), store,
		queue.WithGuardPolicy(catalogGuardPolicy(cat)),
		queue.WithLogger(newLogger()))
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return q, func() { store.Close() }, nil
}

// catalogGuardPolicy reads guard requirements from task declarations.
func catalogGuardPolicy(cat *catalog.Catalog) queue.GuardPolicy {
	return queue.GuardPolicyFunc(func(taskID string) (string, bool) {
		task, ok := cat.Task(taskID)
		if !ok || task.Guard == "" || strings.EqualFold(task.Guard, task.ID) {
			return "", false
		}
		return task.Guard, true
	})
}

func warnIfDegraded(q *queue.Queue) {
	if degraded, err := q.Degraded(); degraded {
		fmt.Printf("⚠  Queue state could not be persisted: %v\n", err)
	}
}
