package main

import (
	"fmt"
	"io"
	"strconv"
)

// Flags holds the parsed command line options.
type Flags struct {
	Pair        string
	Start       string
	LookBack    int
	LookForward int
	Output      string
	Format      string
	Config      string
	Help        bool
	Version     bool
}

// parseFlags parses command line arguments. Zero values mean "not given".
func parseFlags(args []string) (*Flags, error) {
	flags := &Flags{}

	value := func(i int) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", args[i])
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--pair", "-p":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			flags.Pair = v
			i++
		case "--start", "-s":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			flags.Start = v
			i++
		case "--lookback", "-b":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			n, err := parseWindow(v)
			if err != nil {
				return nil, fmt.Errorf("invalid lookback value: %w", err)
			}
			flags.LookBack = n
			i++
		case "--lookforward", "-f":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			n, err := parseWindow(v)
			if err != nil {
				return nil, fmt.Errorf("invalid lookforward value: %w", err)
			}
			flags.LookForward = n
			i++
		case "--output", "-o":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			flags.Output = v
			i++
		case "--format":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			flags.Format = v
			i++
		case "--config", "-c":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			flags.Config = v
			i++
		case "--help", "-h":
			flags.Help = true
		case "--version", "-v":
			flags.Version = true
		default:
			return nil, fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	return flags, nil
}

func parseWindow(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be a positive number of days, got %d", n)
	}
	return n, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `%s - rolling high/low extremes for a Binance pair, v%s

Usage:
  %s [flags]

Flags:
  -p, --pair <pair>          Trading pair, e.g. BTC/USDT or BTCUSDT (prompted if omitted)
  -s, --start <YYYY-MM-DD>   First day to fetch (prompted if omitted)
  -b, --lookback <days>      Trailing window size (default from config, 7)
  -f, --lookforward <days>   Forward window size (default from config, 5)
  -o, --output <path>        Output file (default <PAIR>_Historical_Data.<format>)
      --format <xlsx|csv>    Output format (default xlsx)
  -c, --config <path>        JSON configuration file
  -h, --help                 Show this help
  -v, --version              Show version

Environment:
  BINANCE_BASE_URL, BINANCE_API_KEY, BINANCE_API_SECRET, EXCHANGE_RATE_LIMIT,
  HTTP_TIMEOUT, EXCHANGE_PING, LOOKBACK_DAYS, LOOKFORWARD_DAYS, EXPORT_FORMAT,
  EXPORT_DIR, LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT, LOG_FILE_PATH, CONFIG_PATH
  Variables may also be set in a .env file in the working directory.
`, AppName, Version, AppName)
}
