package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"giftcart/internal/config"
	"giftcart/internal/handler"
	"giftcart/internal/metrics"
	"giftcart/internal/server"
	gift "giftcart/internal/usecase/gift_usecase"
	"giftcart/internal/validator"

	"github.com/spf13/cobra"
)

var runCode string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept page events over HTTP and reconcile on each trigger",
	Long: `Starts an HTTP server that receives storefront events and reconciles the cart.

Routes:
  POST /events        {"name":"cart:updated","source":"theme"}
  POST /page/context  {"path":"/discount/BXGY-43668421771395"}
  POST /reconcile     run one pass now
  GET  /state         state machine and checkout gating
  GET  /page          current page HTML
  GET  /metrics       prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r, err := buildReconciler(ctx, cfg)
		if err != nil {
			return err
		}
		defer r.Close()

		r.coord.Start(ctx)
		defer r.coord.Stop()

		// ページ読み込み時と同じく1回照合しておく
		r.coord.Run(ctx, "startup")

		e := server.New()
		server.RegisterReconcilerRoutes(e, handler.NewEventHandler(r.coord, r.bus, r.doc, metrics.Handler(r.registry)))
		return server.Start(ctx, e, cfg.ListenAddr)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reconciliation pass against the cart and exit",
	Long: `Runs a single pass: fetch the cart, evaluate the rules, add or remove gifts.

With --code the code is treated as if the shopper had typed it.

Example:
  giftsync run --code BXGY-43668421771395`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		r, err := buildReconciler(ctx, cfg)
		if err != nil {
			return err
		}
		defer r.Close()

		r.coord.Restore(ctx)
		if runCode != "" {
			r.coord.Settle(ctx, runCode)
			return printJSON(cmd.OutOrStdout(), handler.StateResponse{Status: r.coord.Status(), CheckoutDisabled: r.doc.CheckoutDisabled()})
		}

		out := r.coord.Run(ctx, "cli")
		return printJSON(cmd.OutOrStdout(), handler.NewRunResponse(out))
	},
}

type parsedCode struct {
	Code      string   `json:"code"`
	Variant   string   `json:"variant,omitempty"`
	RuleID    string   `json:"rule_id"`
	Gifts     []string `json:"gift_variant_ids"`
	Minimum   int64    `json:"minimum_qualifying_items"`
	Validated bool     `json:"validated"`
}

var parseCodeCmd = &cobra.Command{
	Use:   "parse-code [code]",
	Short: "Show which rule a discount code resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := buildResolverOnly()
		if err != nil {
			return err
		}

		code := args[0]
		rule, ok := r.Resolve(code)
		if !ok {
			return fmt.Errorf("code %q does not match any gift rule", code)
		}

		variant, _ := validator.ParseGiftCode(code, cfg.CodePrefix, cfg.DefaultVariant)
		return printJSON(cmd.OutOrStdout(), parsedCode{
			Code:      code,
			Variant:   variant,
			RuleID:    rule.ID,
			Gifts:     rule.GiftVariantIDs,
			Minimum:   rule.EffectiveMinimum(),
			Validated: validator.ValidateDiscountCode(code) == nil,
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored eligibility",
	Long: `Shows the eligibility another giftsync process stored.

Needs STATE_BACKEND=redis. The memory backend lives inside a single
process, so a separate status run would never see it.`,
	PreRunE: requireSharedState,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := buildReconciler(ctx, cfg)
		if err != nil {
			return err
		}
		defer r.Close()

		e, ok, err := r.eligibility.Load(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "no stored eligibility")
			return nil
		}
		return printJSON(cmd.OutOrStdout(), e)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored eligibility",
	Long: `Deletes the stored eligibility so the next page load starts idle.

Needs STATE_BACKEND=redis, same as status.`,
	PreRunE: requireSharedState,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := buildReconciler(ctx, cfg)
		if err != nil {
			return err
		}
		defer r.Close()

		if err := r.eligibility.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cleared")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runCode, "code", "", "discount code to settle before reconciling")
}

// status / clear は別プロセスの状態を読むので共有ストアが要る
func requireSharedState(cmd *cobra.Command, args []string) error {
	if cfg.StateBackend != "redis" {
		return fmt.Errorf("%s needs STATE_BACKEND=redis (got %q)", cmd.Name(), cfg.StateBackend)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parse-code はカートに繋がないのでルールだけ読む
func buildResolverOnly() (*gift.RuleResolver, error) {
	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	return gift.NewRuleResolver(rules, cfg.CodePrefix, cfg.DefaultVariant), nil
}
