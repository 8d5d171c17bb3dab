package server

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const logo = `  ___ ___
 / __|   \
| (__| |) |
 \___|___/`

func (s *Server) printBanner(addr string) {
	accent := color.New(color.FgHiCyan, color.Bold)
	name := color.New(color.FgHiWhite, color.Bold)
	label := color.New(color.FgHiBlack)
	val := color.New(color.FgHiGreen)

	fmt.Println()
	accent.Println(logo)
	name.Println("  Countdown")
	fmt.Println()

	info := func(k, v string) {
		label.Printf("  %-10s", k)
		val.Println(v)
	}

	info("listen", addr)
	info("storage", fmt.Sprintf("%s (%s)", s.StorageBackend, s.StorageDir))
	info("tick", s.TickInterval.String())

	if len(s.Notifiers) > 0 {
		services := make([]string, 0, len(s.Notifiers))
		for _, n := range s.Notifiers {
			scheme, _, _ := strings.Cut(n, "://")
			services = append(services, scheme)
		}
		info("notifiers", strings.Join(services, ", "))
	}
	if s.Metrics {
		info("metrics", "/metrics")
	}
	if s.AutoTLS {
		info("tls", "auto (Let's Encrypt)")
	} else if s.TLSCert != "" {
		info("tls", "custom certificate")
	}
	if s.DemoMode {
		info("demo", "enabled")
	}

	fmt.Println()
}
