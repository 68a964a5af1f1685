package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/creatives-backend/internal/app"
	"github.com/yungbote/creatives-backend/internal/domain/campaign"
)

var (
	uploadImages map[string]string
	uploadWait   bool
)

var rootCmd = &cobra.Command{
	Use:           "creatives",
	Short:         "Campaign creative generation service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run background generation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return a.Run(ctx)
		})
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <campaign-id>",
	Short: "Generate missing product images for a campaign and wait for the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			res, err := a.Services.Briefs.GenerateNow(ctx, args[0])
			if res != nil {
				if perr := printJSON(cmd, res); perr != nil {
					return perr
				}
			}
			return err
		})
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <brief.(json|yaml)>",
	Short: "Upload a brief and optional product images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read brief: %w", err)
		}
		brief, err := campaign.DecodeBrief(raw, args[0])
		if err != nil {
			return err
		}
		images := make(map[string][]byte, len(uploadImages))
		for pid, path := range uploadImages {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read image for %s: %w", pid, err)
			}
			images[pid] = data
		}

		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			if uploadWait {
				if err := a.StartWorkers(); err != nil {
					return err
				}
			}
			res, err := a.Services.Briefs.Upload(ctx, brief, images)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if uploadWait && res.GenerationTriggered && a.Services.GoScheduler != nil {
				a.Services.GoScheduler.Wait()
				st, err := a.Services.Briefs.Status(ctx, res.CampaignID)
				if err != nil {
					return err
				}
				return printJSON(cmd, st)
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <campaign-id>",
	Short: "Show a campaign's generation status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			st, err := a.Services.Briefs.Status(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [campaign-id]",
	Short: "Stream campaign status changes from Redis until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			bus := a.Clients.StatusBus
			if bus == nil {
				return fmt.Errorf("watch requires REDIS_ADDR")
			}
			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}
			err := bus.Subscribe(ctx, func(change campaign.StatusChange) {
				if filter != "" && change.CampaignID != filter {
					return
				}
				if err := printJSON(cmd, change); err != nil {
					a.Log.Warn("Print status change failed", "error", err)
				}
			})
			if err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		})
	},
}

func init() {
	uploadCmd.Flags().StringToStringVar(&uploadImages, "image", nil, "Product image as product-id=path (repeatable)")
	uploadCmd.Flags().BoolVar(&uploadWait, "wait", false, "Wait for background generation (JOBS_DRIVER=memory only)")

	rootCmd.AddCommand(serveCmd, generateCmd, uploadCmd, statusCmd, watchCmd)
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
