package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"resumeCraft/internal/config"
	"resumeCraft/internal/resume"
	"resumeCraft/internal/tasks"
)

var templatePreviewsCmd = &cobra.Command{
	Use:   "template-previews",
	Short: "Queue thumbnail generation for every built-in template",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password})
		defer client.Close()
		return enqueueTemplatePreviews(cmd.Context(), client, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(templatePreviewsCmd)
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// enqueueTemplatePreviews 为每个模板投递一个任务，已在队列中的模板跳过。
func enqueueTemplatePreviews(ctx context.Context, q enqueuer, out io.Writer) error {
	cid := uuid.NewString()
	for _, id := range resume.ThemeIDs() {
		task, err := tasks.NewTemplatePreviewTask(id, cid)
		if err != nil {
			return fmt.Errorf("build task for template %s: %w", id, err)
		}
		info, err := q.EnqueueContext(ctx, task)
		switch {
		case errors.Is(err, asynq.ErrDuplicateTask):
			fmt.Fprintf(out, "template %s: already queued\n", id)
		case err != nil:
			return fmt.Errorf("enqueue template %s: %w", id, err)
		default:
			fmt.Fprintf(out, "template %s: queued %s\n", id, info.ID)
		}
	}
	return nil
}
