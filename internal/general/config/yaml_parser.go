package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseYAML parses the specific two-level mapping used by config.yaml
func parseYAML(r io.Reader, cfg *Config) error {
	type section int
	const (
		none section = iota
		db
		rm
		ht
		jw
		th
		st
		et
		so
		ne
		wk
	)

	scanner := bufio.NewScanner(r)
	var cur section

	lineNo := 0
	seenTop := map[section]bool{}

	markTop := func(s section, name string) error {
		if seenTop[s] {
			return fmt.Errorf("line %d: duplicate %q section", lineNo, name)
		}
		seenTop[s] = true
		cur = s
		return nil
	}

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()

		// strip comments
		if i := strings.IndexByte(raw, '#'); i >= 0 {
			raw = raw[:i]
		}

		line := strings.TrimRight(raw, " \t\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		// top-level section? (no leading spaces)
		if len(line) > 0 && (line[0] != ' ' && line[0] != '\t') {
			var err error
			switch strings.TrimSpace(line) {
			case "database:":
				err = markTop(db, "database")
			case "rabbitmq:":
				err = markTop(rm, "rabbitmq")
			case "http:":
				err = markTop(ht, "http")
			case "jwt:":
				err = markTop(jw, "jwt")
			case "throttle:":
				err = markTop(th, "throttle")
			case "stale:":
				err = markTop(st, "stale")
			case "eta:":
				err = markTop(et, "eta")
			case "socket:":
				err = markTop(so, "socket")
			case "near:":
				err = markTop(ne, "near")
			case "workers:":
				err = markTop(wk, "workers")
			default:
				return fmt.Errorf("line %d: unknown top-level key %q", lineNo, strings.TrimSuffix(strings.TrimSpace(line), ":"))
			}
			if err != nil {
				return err
			}
			continue
		}

		// expect indented "key: value"
		if cur == none {
			return fmt.Errorf("line %d: key without a section", lineNo)
		}
		trim := strings.TrimSpace(line)
		colon := strings.IndexByte(trim, ':')
		if colon <= 0 {
			return fmt.Errorf("line %d: expected 'key: value'", lineNo)
		}
		key := strings.TrimSpace(trim[:colon])
		val := resolveScalar(strings.TrimSpace(trim[colon+1:]))

		atoi := func(field string) (int, error) {
			n, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("line %d: %s must be int: %v", lineNo, field, err)
			}
			return n, nil
		}

		var err error
		switch cur {
		case db:
			switch key {
			case "host":
				cfg.Database.Host = val
			case "port":
				cfg.Database.Port, err = atoi("database.port")
			case "user":
				cfg.Database.User = val
			case "password":
				cfg.Database.Password = val
			case "database":
				cfg.Database.Name = val
			default:
				return fmt.Errorf("line %d: unknown key in database: %q", lineNo, key)
			}
		case rm:
			switch key {
			case "host":
				cfg.RabbitMQ.Host = val
			case "port":
				cfg.RabbitMQ.Port, err = atoi("rabbitmq.port")
			case "user":
				cfg.RabbitMQ.User = val
			case "password":
				cfg.RabbitMQ.Password = val
			default:
				return fmt.Errorf("line %d: unknown key in rabbitmq: %q", lineNo, key)
			}
		case ht:
			switch key {
			case "port":
				cfg.HTTP.Port, err = atoi("http.port")
			default:
				return fmt.Errorf("line %d: unknown key in http: %q", lineNo, key)
			}
		case jw:
			switch key {
			case "secret_key":
				cfg.JWT.SecretKey = val
			default:
				return fmt.Errorf("line %d: unknown key in jwt: %q", lineNo, key)
			}
		case th:
			switch key {
			case "min_interval_ms":
				cfg.Throttle.MinIntervalMs, err = atoi("throttle.min_interval_ms")
			case "min_distance_m":
				cfg.Throttle.MinDistanceM, err = atoi("throttle.min_distance_m")
			default:
				return fmt.Errorf("line %d: unknown key in throttle: %q", lineNo, key)
			}
		case st:
			switch key {
			case "window_s":
				cfg.Stale.WindowS, err = atoi("stale.window_s")
			case "tick_interval_s":
				cfg.Stale.TickIntervalS, err = atoi("stale.tick_interval_s")
			default:
				return fmt.Errorf("line %d: unknown key in stale: %q", lineNo, key)
			}
		case et:
			switch key {
			case "tick_interval_s":
				cfg.ETA.TickIntervalS, err = atoi("eta.tick_interval_s")
			case "smoothing_alpha":
				f, ferr := strconv.ParseFloat(val, 64)
				if ferr != nil {
					return fmt.Errorf("line %d: eta.smoothing_alpha must be float: %v", lineNo, ferr)
				}
				cfg.ETA.SmoothingAlpha = f
			default:
				return fmt.Errorf("line %d: unknown key in eta: %q", lineNo, key)
			}
		case so:
			switch key {
			case "outbound_queue":
				cfg.Socket.OutboundQueue, err = atoi("socket.outbound_queue")
			default:
				return fmt.Errorf("line %d: unknown key in socket: %q", lineNo, key)
			}
		case ne:
			switch key {
			case "radius_max_m":
				cfg.Near.RadiusMaxM, err = atoi("near.radius_max_m")
			default:
				return fmt.Errorf("line %d: unknown key in near: %q", lineNo, key)
			}
		case wk:
			switch key {
			case "enabled":
				b, berr := strconv.ParseBool(val)
				if berr != nil {
					return fmt.Errorf("line %d: workers.enabled must be bool: %v", lineNo, berr)
				}
				cfg.Workers.Enabled = b
			default:
				return fmt.Errorf("line %d: unknown key in workers: %q", lineNo, key)
			}
		}
		if err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	return nil
}

// resolveScalar trims whitespace and removes surrounding quotes from YAML-like scalars.
// For example:
//
//	"localhost"  -> localhost
//	'password123' -> password123
//	localhost     -> localhost
//
// This ensures values like jwt.secret_key are not stored with extra quotes.
func resolveScalar(s string) string {
	s = strings.TrimSpace(s)

	// if value is quoted with "..." or '...', remove quotes safely
	n := len(s)
	if n >= 2 {
		if (s[0] == '"' && s[n-1] == '"') || (s[0] == '\'' && s[n-1] == '\'') {
			if unq, err := strconv.Unquote(s); err == nil {
				return unq
			}
			// fallback if strconv.Unquote fails (e.g., mismatched quotes)
			return s[1 : n-1]
		}
	}

	return s
}
