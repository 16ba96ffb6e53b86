// Command console drives an in-memory pool end to end: create a pool, open
// positions, add liquidity, swap, and collect, printing the pool state after
// seeding and again after the swaps. It is the quickest way to watch the
// engine's accounting at work.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/defistate/clmm-engine-go/calculator/tickmath"
	"github.com/defistate/clmm-engine-go/collab"
	"github.com/defistate/clmm-engine-go/pool"
	"github.com/defistate/clmm-engine-go/tokenregistry"
)

func main() {
	root := &cobra.Command{
		Use:          "console",
		Short:        "CLMM pool engine console",
		SilenceUsage: true,
	}

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted pool session",
		RunE:  runDemo,
	}
	demoCmd.Flags().Uint32("tick-spacing", 1, "pool tick spacing")
	demoCmd.Flags().Uint64("swap-amount", 20_000, "amount for each demo swap")
	demoCmd.Flags().Int("swaps", 4, "number of demo swaps")
	demoCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	demoCmd.Flags().String("metrics-listen", "", "optional prometheus listen address, e.g. :9105")
	root.AddCommand(demoCmd)

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Run one flash swap against a freshly seeded pool",
		RunE:  runSwap,
	}
	swapCmd.Flags().Uint32("tick-spacing", 1, "pool tick spacing")
	swapCmd.Flags().Bool("a-to-b", true, "swap direction")
	swapCmd.Flags().Bool("by-amount-in", true, "fix the input amount rather than the output")
	swapCmd.Flags().Uint64("amount", 20_000, "swap amount")
	swapCmd.Flags().Uint64("amount-limit", 0, "slippage bound (min out or max in, 0 = unbounded)")
	swapCmd.Flags().Uint64("liquidity", 1_000_000_000_000, "seed position liquidity")
	swapCmd.Flags().Int32("tick-lower", -10, "seed position lower tick")
	swapCmd.Flags().Int32("tick-upper", 10, "seed position upper tick")
	swapCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(swapCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// engine bundles the in-memory collaborators behind one seeded pool.
type engine struct {
	log      *zap.Logger
	metrics  *pool.Metrics
	registry *prometheus.Registry
	tokens   *tokenregistry.Registry
	partners *collab.MemoryPartnerRegistry
	sink     *pool.CollectorSink
	pool     *pool.Pool
	lp       common.Address
}

func loadFlags(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	return v, nil
}

// buildEngine stands up tokens, collaborators and one pool at price 1.
func buildEngine(v *viper.Viper) (*engine, error) {
	log, err := buildLogger(v.GetString("log-level"))
	if err != nil {
		return nil, err
	}

	metrics := pool.NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return nil, err
	}

	admin := common.HexToAddress("0x00000000000000000000000000000000000000ad")
	lp := common.HexToAddress("0x000000000000000000000000000000000000001b")

	tokens := tokenregistry.NewRegistry()
	for _, t := range []tokenregistry.Token{
		{ID: 1, Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18},
		{ID: 2, Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	} {
		if err := tokens.Register(t); err != nil {
			return nil, err
		}
	}

	partners := collab.NewMemoryPartnerRegistry()
	partners.SetRate("demo-router", 3000)

	deps := pool.Deps{
		ACL:      &collab.StaticAccessControl{Admin: admin},
		Partners: partners,
		FeeTiers: collab.StaticFeeTiers{1: 1000, 10: 3000, 60: 10_000},
		NFT:      collab.NewMemoryPositionNFT(),
		Clock:    collab.SystemClock{},
		Tokens:   tokens,
	}
	sink := &pool.CollectorSink{}
	registry := pool.NewRegistry(deps, pool.WithLogger(log), pool.WithEventSink(sink), pool.WithMetrics(metrics))

	initPrice := new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	p, err := registry.CreatePool(admin, 1, 2, v.GetUint32("tick-spacing"), initPrice, "demo://pool")
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	return &engine{
		log:      log,
		metrics:  metrics,
		registry: reg,
		tokens:   tokens,
		partners: partners,
		sink:     sink,
		pool:     p,
		lp:       lp,
	}, nil
}

// seedPosition opens a position and settles its receipt with minted assets.
func (e *engine) seedPosition(lower, upper int32, liquidity *uint256.Int) error {
	index, err := e.pool.OpenPosition(e.lp, lower, upper)
	if err != nil {
		return fmt.Errorf("open position: %w", err)
	}
	receipt, err := e.pool.AddLiquidity(e.lp, index, liquidity)
	if err != nil {
		return fmt.Errorf("add liquidity: %w", err)
	}
	owedA, owedB := receipt.Owed()
	if err := e.pool.RepayAddLiquidity(e.tokens.Mint(1, owedA), e.tokens.Mint(2, owedB), receipt); err != nil {
		return fmt.Errorf("repay add liquidity: %w", err)
	}
	e.log.Info("liquidity added", zap.Uint64("amount_a", owedA), zap.Uint64("amount_b", owedB))
	return nil
}

// flashSwap runs one FlashSwap/RepayFlashSwap round trip and logs the
// settlement.
func (e *engine) flashSwap(partner string, aToB, byAmountIn bool, amount, amountLimit uint64) error {
	limit := tickmath.MaxSqrtPrice
	if aToB {
		limit = tickmath.MinSqrtPrice
	}
	assetA, assetB, receipt, err := e.pool.FlashSwap(e.lp, partner, aToB, byAmountIn, amount, amountLimit, limit)
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}

	repayA, repayB := tokenregistry.Zero(tokenregistry.TokenID(1)), e.tokens.Mint(2, receipt.PayAmount())
	if aToB {
		repayA, repayB = e.tokens.Mint(1, receipt.PayAmount()), tokenregistry.Zero(tokenregistry.TokenID(2))
	}
	if err := e.pool.RepayFlashSwap(repayA, repayB, receipt); err != nil {
		return fmt.Errorf("repay swap: %w", err)
	}
	e.log.Info("swap settled",
		zap.Bool("a_to_b", aToB),
		zap.Bool("by_amount_in", byAmountIn),
		zap.Uint64("received_a", assetA.Amount()),
		zap.Uint64("received_b", assetB.Amount()),
		zap.Uint64("paid", receipt.PayAmount()),
		zap.Uint64("ref_fee", receipt.RefFeeAmount()))
	return nil
}

func runDemo(cmd *cobra.Command, _ []string) error {
	v, err := loadFlags(cmd)
	if err != nil {
		return err
	}
	e, err := buildEngine(v)
	if err != nil {
		return err
	}
	defer e.log.Sync() //nolint:errcheck

	if listen := v.GetString("metrics-listen"); listen != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(listen, mux); err != nil {
				e.log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		e.log.Info("serving metrics", zap.String("listen", listen))
	}

	if err := e.seedPosition(-10, 10, uint256.NewInt(1_000_000_000_000)); err != nil {
		return err
	}
	dumpPool(e.pool)

	amount := v.GetUint64("swap-amount")
	for i := 0; i < v.GetInt("swaps"); i++ {
		if err := e.flashSwap("demo-router", i%2 == 0, true, amount, 0); err != nil {
			return err
		}
	}
	dumpPool(e.pool)

	feeA, feeB, err := e.pool.CollectFee(e.lp, 1, true)
	if err != nil {
		return fmt.Errorf("collect fee: %w", err)
	}
	e.log.Info("fees collected", zap.Uint64("fee_a", feeA.Amount()), zap.Uint64("fee_b", feeB.Amount()))
	e.log.Info("partner earnings",
		zap.Uint64("token_a", e.partners.Received("demo-router", 1)),
		zap.Uint64("token_b", e.partners.Received("demo-router", 2)))
	e.log.Info("events emitted", zap.Int("count", len(e.sink.Events)))
	return nil
}

func runSwap(cmd *cobra.Command, _ []string) error {
	v, err := loadFlags(cmd)
	if err != nil {
		return err
	}
	e, err := buildEngine(v)
	if err != nil {
		return err
	}
	defer e.log.Sync() //nolint:errcheck

	if err := e.seedPosition(v.GetInt32("tick-lower"), v.GetInt32("tick-upper"), uint256.NewInt(v.GetUint64("liquidity"))); err != nil {
		return err
	}
	if err := e.flashSwap("", v.GetBool("a-to-b"), v.GetBool("by-amount-in"), v.GetUint64("amount"), v.GetUint64("amount-limit")); err != nil {
		return err
	}
	dumpPool(e.pool)
	return nil
}

func dumpPool(p *pool.Pool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	vaultA, vaultB := p.VaultBalances()
	protoA, protoB := p.ProtocolFees()
	fmt.Fprintf(w, "pool\t%d\n", p.Index())
	fmt.Fprintf(w, "tick\t%d\n", p.TickCurrent())
	fmt.Fprintf(w, "sqrt_price\t%s\n", p.SqrtPrice().Dec())
	fmt.Fprintf(w, "price\t%s\n", tickmath.PriceDecimal(p.SqrtPrice(), 18, 6).StringFixed(6))
	fmt.Fprintf(w, "liquidity\t%s\n", p.Liquidity().Dec())
	fmt.Fprintf(w, "vault\t%d / %d\n", vaultA, vaultB)
	fmt.Fprintf(w, "protocol_fees\t%d / %d\n", protoA, protoB)
	w.Flush() //nolint:errcheck
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
