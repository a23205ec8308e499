package wormcore

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wormhole-foundation/wormhole/core/pkg/core"
	"github.com/wormhole-foundation/wormhole/core/pkg/db"
)

var verifyTime *int64

func init() {
	verifyTime = VerifyCmd.Flags().Int64("time", 0, "Unix time to verify at (defaults to now)")
	VerifyCmd.Flags().AddFlagSet(genesisFlags)
}

var VerifyCmd = &cobra.Command{
	Use:   "verify [HEX|FILENAME]",
	Short: "Verify a VAA offline against the genesis guardian set",
	Run:   runVerify,
	Args:  cobra.ExactArgs(1),
}

// readVAAArg accepts a hex string or a file holding either hex or raw VAA bytes.
func readVAAArg(arg string) ([]byte, error) {
	if b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(arg), "0x")); err == nil {
		return b, nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("argument is neither hex nor a readable file: %w", err)
	}
	if b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(string(data)), "0x")); err == nil {
		return b, nil
	}
	return data, nil
}

func runVerify(cmd *cobra.Command, args []string) {
	if err := applyConfig(cmd.Flags()); err != nil {
		fatalf("%v", err)
	}
	data, err := readVAAArg(args[0])
	if err != nil {
		fatalf("%v", err)
	}
	g, err := loadGenesis()
	if err != nil {
		fatalf("failed to load genesis: %v", err)
	}
	scheme, err := digestScheme()
	if err != nil {
		fatalf("%v", err)
	}

	opts := []core.Option{}
	if *verifyTime != 0 {
		at := time.Unix(*verifyTime, 0)
		opts = append(opts, core.WithClock(core.ClockFunc(func() time.Time { return at })))
	}

	ctx := context.Background()
	bridge := core.NewBridge(db.NewMemoryStore(), g.Config(scheme), opts...)
	if _, err := bridge.Initialize(ctx, g.Guardians); err != nil {
		fatalf("failed to load guardian set: %v", err)
	}

	v, err := bridge.ParseAndVerifyVAA(ctx, data)
	if err != nil {
		fatalf("VAA is NOT valid: %v", err)
	}
	fmt.Printf("VAA %s is valid\ndigest: %s\n", v.MessageID(), v.HexDigest(scheme))
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
