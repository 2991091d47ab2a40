package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/calloway/mailscan/internal/adapters/parser"
	"github.com/calloway/mailscan/internal/core"
	"github.com/calloway/mailscan/internal/di"
	"github.com/calloway/mailscan/internal/ports"
)

func main() {
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}

	// DANGEROUS verdicts fail the command so shell pipelines can react
	if exitDangerous {
		os.Exit(2)
	}
}

var exitDangerous bool

// run analyzes one email from a file or stdin and prints the verdict
func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	p *parser.Parser,
) error {
	defer logger.Sync()

	// Read email from file or stdin
	var emailReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			logger.Error("Failed to open input file", zap.Error(err), zap.String("file", flags.InputFile))
			return err
		}
		defer file.Close()
		emailReader = file
		logger.Debug("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		emailReader = os.Stdin
		logger.Debug("Reading email from stdin")
	}

	facts, err := p.Parse(emailReader)
	if err != nil {
		logger.Error("Failed to parse email", zap.Error(err))
		return err
	}

	report, err := emailFilter.ProcessEmail(context.Background(), facts)
	if err != nil {
		return err
	}

	exitDangerous = report.Verdict.Level == core.LevelDangerous
	return nil
}
