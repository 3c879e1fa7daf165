// Command netprobe schedules iperf3 throughput probes and judges
// the measurements against declared expectations.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
