package main

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/xssnick/tonutils-transfer/config"
	"github.com/xssnick/tonutils-transfer/keys"
	"github.com/xssnick/tonutils-transfer/ledger/memory"
	"github.com/xssnick/tonutils-transfer/metrics"
	"github.com/xssnick/tonutils-transfer/ton"
	"github.com/xssnick/tonutils-transfer/ton/wallet"
)

// exit codes, so scripts can tell if it is safe to retry
const (
	exitOK = iota
	exitFailure
	exitInvalidInput
	exitStateUnavailable
	exitRejected
	exitUnknownOutcome
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	if err := config.LoadEnv(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return exitFailure
	}

	cfg := config.Default()
	if path := os.Getenv("TONWALLET_CONFIG"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			os.Stderr.WriteString(err.Error() + "\n")
			return exitFailure
		}
	}

	log, err := cfg.Logging.NewLogger(os.Stderr)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return exitFailure
	}

	m := metrics.New(prometheus.NewRegistry())
	tonCfg, err := cfg.TonConfig(log, m)
	if err != nil {
		log.Error().Err(err).Msg("invalid client config")
		return exitFailure
	}

	// in-memory ledger stands in for the network, real backends are plugged with the same DialFunc
	ledger := memory.New(memory.WithNetwork(tonCfg.Network), memory.WithLogger(log))
	client, err := ton.NewClient(ctx, tonCfg, ledger.Dial())
	if err != nil {
		log.Error().Err(err).Msg("failed to init client")
		return exitFailure
	}
	defer client.Close()

	locker, closeLocker, err := cfg.NewLocker(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to init lock")
		return exitFailure
	}
	defer closeLocker()

	ver, err := cfg.WalletVersion()
	if err != nil {
		log.Error().Err(err).Msg("bad wallet version")
		return exitInvalidInput
	}

	w, err := openWallet(client, cfg, ver, cfg.WalletOptions(
		wallet.WithLogger(log),
		wallet.WithLocker(locker),
		wallet.WithMetrics(m),
	))
	if err != nil {
		return report(log, err)
	}
	log.Info().Str("address", w.WalletAddress().String()).Msg("wallet opened")

	// deposit to not deployed wallet, first transfer deploys it
	ledger.Fund(w.Address(), big.NewInt(1_000_000_000))

	to := os.Getenv("TONWALLET_TO")
	if to == "" {
		to = "0QAfX8cOX7tBdjHysYkhQqov1a_W8aiF765EICGQkcl1fKpR"
	}
	amount := os.Getenv("TONWALLET_AMOUNT")
	if amount == "" {
		amount = "10000000"
	}

	conf, err := w.Transfer(ctx, wallet.Intent{To: to, Amount: amount, Comment: "Hello from tonutils-transfer!"})
	if err != nil {
		if conf != nil {
			log.Warn().Uint32("seqno", conf.Seqno).Time("expires_at", conf.ExpiresAt).
				Msg("check message by seqno before sending a new one")
		}
		return report(log, err)
	}

	status, err := w.Confirm(ctx, conf)
	if err != nil {
		log.Error().Err(err).Msg("failed to check transfer")
		return exitStateUnavailable
	}

	balance, err := w.GetBalance(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to get balance")
		return exitStateUnavailable
	}

	log.Info().
		Hex("hash", conf.Hash).
		Uint32("seqno", conf.Seqno).
		Str("status", status.String()).
		Str("balance", balance.String()).
		Msg("transfer done")
	return exitOK
}

// openWallet - key is taken from TONWALLET_SEED (hex) or from keystore by TONWALLET_WORDS
func openWallet(api ton.API, cfg *config.Config, ver wallet.Version, opts []wallet.Option) (*wallet.Wallet, error) {
	if words := os.Getenv("TONWALLET_WORDS"); words != "" {
		ks := keys.Keystore{Dir: cfg.KeystoreDir}
		return wallet.FromProvider(api, ks, strings.Fields(words), os.Getenv("TONWALLET_PASSWORD"), ver, opts...)
	}

	seed := []byte("12345678901234567890123456789012")
	if s := os.Getenv("TONWALLET_SEED"); s != "" {
		var err error
		if seed, err = hex.DecodeString(s); err != nil {
			return nil, &wallet.StageError{Stage: wallet.StageDerive, Err: errors.Join(keys.ErrInvalidMnemonic, err)}
		}
	}

	key, err := keys.FromSeed(seed)
	if err != nil {
		return nil, &wallet.StageError{Stage: wallet.StageDerive, Err: errors.Join(keys.ErrInvalidMnemonic, err)}
	}
	return wallet.FromPrivateKey(api, key, ver, opts...)
}

func report(log zerolog.Logger, err error) int {
	var sErr *wallet.StageError
	stage := "unknown"
	if errors.As(err, &sErr) {
		stage = string(sErr.Stage)
	}

	kind := wallet.Classify(err)
	log.Error().Err(err).Str("stage", stage).Str("kind", kind.String()).Msg("transfer failed")

	switch kind {
	case wallet.KindInvalidInput:
		return exitInvalidInput
	case wallet.KindStateUnavailable:
		return exitStateUnavailable
	case wallet.KindRejected:
		return exitRejected
	case wallet.KindTransient:
		return exitUnknownOutcome
	}
	return exitFailure
}
