package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// CycleRequester публикует запрос внеочередного цикла (mq.Publisher).
type CycleRequester interface {
	RequestCycle(ctx context.Context, reason string) error
}

// RequesterFunc подключается к брокеру. close освобождает соединение.
type RequesterFunc func(ctx context.Context) (req CycleRequester, close func(), err error)

// NewKickCmd создаёт команду `kick`: работающий relay запустит цикл немедленно.
func NewKickCmd(requesterFn RequesterFunc, outputFn func() *Output) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "kick",
		Short: "Ask a running relay to start a cycle now (requires RABBITMQ_URL)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			req, closeFn, err := requesterFn(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := req.RequestCycle(cmd.Context(), reason); err != nil {
				return err
			}

			out.Success("cycle requested")
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "cli", "Reason recorded in relay logs")

	return cmd
}
