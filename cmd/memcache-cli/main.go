package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/SethReber/Enyim.Caching/pkg/memcache"
)

func main() {
	// Parse command-line flags
	serverAddr := flag.String("server", "localhost:11211", "Server address (e.g., localhost:11211)")
	useWS := flag.Bool("ws", false, "Connect over WebSocket instead of raw TCP")
	readTimeout := flag.Duration("timeout", memcache.DefaultReadTimeout, "Read timeout per response")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	network := "tcp"
	if *useWS {
		network = "ws"
	}

	c, err := memcache.Dial(memcache.Options{
		Address:     *serverAddr,
		Network:     network,
		ReadTimeout: *readTimeout,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to server")
	}
	defer c.Close()

	fmt.Println("Commands: get <key> | set <key> <value> | delete <key> | incr <key> <delta> | decr <key> <delta> | touch <key> <seconds> | version | flush | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "quit" || fields[0] == "exit" {
			if err := c.Quit(); err != nil {
				logger.Error().Err(err).Msg("failed to quit cleanly")
			}
			return
		}

		if err := run(c, fields); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Error().Err(err).Msg("error reading input")
	}
}

func run(c *memcache.Client, fields []string) error {
	switch fields[0] {
	case "get":
		if len(fields) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		item, err := c.Get(fields[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s (flags=%d cas=%d)\n", item.Value, item.Flags, item.CAS)
		return nil

	case "set":
		if len(fields) < 3 {
			return fmt.Errorf("usage: set <key> <value>")
		}
		value := strings.Join(fields[2:], " ")
		return c.Set(&memcache.Item{Key: fields[1], Value: []byte(value)})

	case "delete":
		if len(fields) != 2 {
			return fmt.Errorf("usage: delete <key>")
		}
		return c.Delete(fields[1])

	case "incr", "decr":
		if len(fields) != 3 {
			return fmt.Errorf("usage: %s <key> <delta>", fields[0])
		}
		delta, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid delta %q: %w", fields[2], err)
		}
		var n uint64
		if fields[0] == "incr" {
			n, err = c.Increment(fields[1], delta, 0, 0)
		} else {
			n, err = c.Decrement(fields[1], delta, 0, 0)
		}
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil

	case "touch":
		if len(fields) != 3 {
			return fmt.Errorf("usage: touch <key> <seconds>")
		}
		secs, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid expiry %q: %w", fields[2], err)
		}
		return c.Touch(fields[1], uint32(secs))

	case "version":
		v, err := c.Version()
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil

	case "flush":
		return c.FlushAll()

	case "noop":
		return c.Noop()

	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}
