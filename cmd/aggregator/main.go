// Command aggregator is the process entrypoint: it loads configuration,
// builds every pipeline component, wires them under one supervisor, and
// runs until signalled. Grounded on the teacher's daemon bootstrap pattern
// (cmd/cli root + synnergy.yaml loading), adapted from a CLI-first daemon
// to a single long-running service process.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/veilchain/aggregator/internal/admission"
	"github.com/veilchain/aggregator/internal/batch"
	"github.com/veilchain/aggregator/internal/chain"
	"github.com/veilchain/aggregator/internal/control"
	"github.com/veilchain/aggregator/internal/fees"
	"github.com/veilchain/aggregator/internal/logging"
	"github.com/veilchain/aggregator/internal/metrics"
	"github.com/veilchain/aggregator/internal/pipeline"
	"github.com/veilchain/aggregator/internal/proofgen"
	"github.com/veilchain/aggregator/internal/queue"
	"github.com/veilchain/aggregator/internal/rollup"
	"github.com/veilchain/aggregator/internal/state"
	"github.com/veilchain/aggregator/internal/types"
	"github.com/veilchain/aggregator/internal/verifier"
	"github.com/veilchain/aggregator/internal/worldstate"
	"github.com/veilchain/aggregator/pkg/config"
	"github.com/veilchain/aggregator/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading config:", err)
		os.Exit(1)
	}

	baseLog, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, "initializing logging:", err)
		os.Exit(1)
	}
	log := baseLog.WithField("component", "main")

	if err := run(cfg, baseLog); err != nil {
		log.WithError(err).Error("aggregator exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, baseLog *logrus.Logger) error {
	log := baseLog.WithField("component", "main")
	m := metrics.New()
	store := worldstate.NewStore(worldstate.DefaultDepths())

	verifierLog := baseLog.WithField("component", "verifier")
	circuit, err := verifier.Load(cfg.Verifier.WasmPath, verifierLog)
	if err != nil {
		return utils.Wrap(err, "loading join-split verifier")
	}

	ethClient, err := ethclient.Dial(cfg.Chain.RPCEndpoint)
	if err != nil {
		return utils.Wrap(err, "dialing chain RPC endpoint")
	}

	sign, err := buildSigner(cfg)
	if err != nil {
		return utils.Wrap(err, "building transaction signer")
	}

	assets := make([]common.Address, len(cfg.Chain.SupportedAssets))
	for i, a := range cfg.Chain.SupportedAssets {
		assets[i] = common.HexToAddress(a)
	}

	chainLog := baseLog.WithField("component", "chain")
	adapter := chain.New(chain.Config{
		Backend:   ethClient,
		Processor: common.HexToAddress(cfg.Chain.ProcessorAddress),
		Assets:    assets,
		GasLimit:  cfg.Chain.GasLimit,
		Sign:      sign,
	}, chainLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	status, err := adapter.Status(ctx)
	if err != nil {
		return utils.Wrap(err, "reading initial chain status")
	}

	proofgenLog := baseLog.WithField("component", "proofgen")
	prover, err := proofgen.Start(cfg.ProofGenerator.BinaryPath, nil, nil, proofgenLog)
	if err != nil {
		return utils.Wrap(err, "starting prover child process")
	}
	defer prover.Cancel()

	txQueue := queue.New[*types.JoinSplitProof]()
	stateQueue := state.NewQueue()

	admissionLog := baseLog.WithField("component", "admission")
	gate := admission.New(store, circuit, txQueue, m, admissionLog)
	_ = gate // wired for embedding callers; tx submission transport is out of this module's scope

	rollupLog := baseLog.WithField("component", "rollup")
	builder := rollup.New(uint32(cfg.Rollup.Size), status.NextRollupID, prover, adapter, m, rollupLog)
	builder.SetProverTimeout(cfg.ProofGenerator.RequestTimeout)

	batchLog := baseLog.WithField("component", "batch")
	controller, err := batch.New(cfg.Rollup.Size, cfg.Rollup.MaxRollupWaitTime, cfg.Rollup.MinRollupInterval,
		txQueue, stateQueue, builder, m, batchLog)
	if err != nil {
		return utils.Wrap(err, "building batch controller")
	}

	stateLog := baseLog.WithField("component", "state")
	serializer := state.New(stateQueue, store, m, stateLog)

	feesLog := baseLog.WithField("component", "fees")
	calc := buildFeeCalculator(cfg, ethClient, feesLog)
	_ = calc // quoted by wallet clients embedding this module; no RPC surface is part of the core

	sup := pipeline.New(log)
	sup.Add("batch-controller", controller.Run)
	sup.Add("state-serializer", serializer.Run)
	sup.Add("chain-block-watcher", func(ctx context.Context) error {
		return watchConfirmedBlocks(ctx, adapter, stateQueue, status.NextRollupID)
	})

	controlLog := baseLog.WithField("component", "control")
	ln, err := net.Listen("tcp", cfg.Control.ListenAddr)
	if err != nil {
		return utils.Wrap(err, "opening control socket")
	}
	ctrl := control.New(controller, builder, controlLog)
	sup.Add("control-socket", func(ctx context.Context) error {
		return ctrl.Serve(ctx, ln)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	return sup.Run(ctx)
}

// watchConfirmedBlocks forwards every confirmed rollup block the chain
// adapter streams into a state-queue item, starting from fromRollupID.
func watchConfirmedBlocks(ctx context.Context, adapter *chain.Adapter, stateQueue *state.Queue, fromRollupID uint64) error {
	blocks := make(chan types.Block, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- adapter.StreamBlocks(ctx, fromRollupID, blocks) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case block := <-blocks:
			stateQueue.Push(state.BlockItem(block))
		}
	}
}

// buildSigner unlocks the configured keystore account and returns a
// chain.TxSigner bound to it. Key custody beyond "a local keystore file plus
// passphrase" is outside this module's scope (see DESIGN.md).
func buildSigner(cfg *config.Config) (chain.TxSigner, error) {
	ks := keystore.NewKeyStore(cfg.Chain.KeystorePath, keystore.StandardScryptN, keystore.StandardScryptP)
	account, err := ks.Find(accounts.Account{Address: common.HexToAddress(cfg.Chain.SubmitterAddress)})
	if err != nil {
		return nil, utils.Wrap(err, "locating submitter account in keystore")
	}
	if err := ks.Unlock(account, cfg.Chain.KeystorePassphrase); err != nil {
		return nil, utils.Wrap(err, "unlocking submitter account")
	}

	chainID := big.NewInt(cfg.Chain.ChainID)
	return func(tx *gethtypes.Transaction) (*gethtypes.Transaction, error) {
		return ks.SignTx(account, tx, chainID)
	}, nil
}

// buildFeeCalculator wires FeeCalculator with a live gas-price oracle backed
// by the chain node and operator-configured per-asset prices.
func buildFeeCalculator(cfg *config.Config, gasSource fees.GasPriceSource, log *logrus.Entry) *fees.Calculator {
	prices := make(map[uint32]*big.Int, len(cfg.Fees.AssetPricesWei))
	for assetID, raw := range cfg.Fees.AssetPricesWei {
		var id uint32
		fmt.Sscanf(assetID, "%d", &id)
		price, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			log.WithField("assetId", assetID).Warn("ignoring malformed asset price in config")
			continue
		}
		prices[id] = price
	}
	oracle := fees.NewStaticOracle(prices, gasSource)

	return fees.New(fees.Config{
		NativeAssetID:       cfg.Fees.NativeAssetID,
		TxsPerRollup:        int(cfg.Fees.TxsPerRollup),
		PublishIntervalSecs: int(cfg.Fees.PublishIntervalSecs),
		Oracle:              oracle,
	})
}
