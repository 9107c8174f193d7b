// pinctl exercises a board session end to end: it drives the configured
// output pins to their safe state, optionally blinks a pin and samples an
// analog channel, and shuts the session down safely, Ctrl-C included.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"arduinoio/boardio"
)

func main() {
	fs := flag.NewFlagSet("pinctl", flag.ContinueOnError)

	var (
		address    = fs.StringP("port", "p", "", "Serial port of the board (e.g. /dev/ttyACM0)")
		outputPins = fs.IntSlice("output-pins", nil, "Pins to hold at the safe state")
		safeState  = fs.Int("safe-state", -1, "Level that keeps actuators inert: 0 or 1 (required)")
		blinkPin   = fs.Int("blink", -1, "Blink this pin a few times")
		analogPin  = fs.Int("read-analog", -1, "Sample this analog channel")
		verbose    = fs.CountP("verbose", "v", "Increase verbosity (repeatable)")
	)

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if *address == "" {
		fmt.Fprintln(os.Stderr, "pinctl: --port is required")
		fs.Usage()
		os.Exit(2)
	}
	if *safeState != 0 && *safeState != 1 {
		// Refuse to guess: the wrong level can energize actuators.
		fmt.Fprintln(os.Stderr, "pinctl: --safe-state must be given explicitly as 0 or 1")
		os.Exit(2)
	}

	logger := boardio.NewLogger(boardio.LogLevel(*verbose + 1))

	session := boardio.NewSession(boardio.SessionConfig{
		Address:    *address,
		OutputPins: *outputPins,
		SafeState:  *safeState,
		Logger:     logger,
	})
	if !session.Connected() {
		fmt.Fprintf(os.Stderr, "pinctl: could not open board: %v\n", session.Err())
		os.Exit(1)
	}

	// Sessions take no concurrent callers, so the worker goroutine must be
	// stopped and drained before the close sequence touches the session.
	// The close sequence itself is the correctness-critical path: it
	// restores every touched output pin to the safe state, so it must run
	// even when the demo is interrupted.
	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt, syscall.SIGTERM)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		runTasks(session, *blinkPin, *analogPin, stop)
	}()

	select {
	case <-interrupted:
		fmt.Fprintln(os.Stderr, "pinctl: interrupted, restoring safe state")
		close(stop)
		<-done
	case <-done:
	}

	if err := session.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "pinctl: close: %v\n", err)
		os.Exit(1)
	}
}

// runTasks runs the demo sequence, bailing out promptly once stop closes.
// It is the sole user of the session until it returns.
func runTasks(s *boardio.Session, blinkPin, analogPin int, stop <-chan struct{}) {
	if blinkPin >= 0 {
		if !blink(s, blinkPin, 5, stop) {
			return
		}
	}

	select {
	case <-stop:
		return
	default:
	}

	if analogPin >= 0 {
		readAnalog(s, analogPin)
	}
}

// blink toggles a pin the given number of times. It returns false if it
// was stopped or hit a write failure before finishing.
func blink(s *boardio.Session, pin, times int, stop <-chan struct{}) bool {
	for i := 0; i < times; i++ {
		for _, level := range []int{1, 0} {
			if _, err := s.DigitalWrite(pin, level); err != nil {
				fmt.Fprintf(os.Stderr, "pinctl: blink: %v\n", err)
				return false
			}
			select {
			case <-stop:
				return false
			case <-time.After(300 * time.Millisecond):
			}
		}
	}
	return true
}

func readAnalog(s *boardio.Session, pin int) {
	v, err := s.AnalogRead(pin)
	if err != nil {
		if boardio.IsNoValue(err) {
			fmt.Printf("A%d: no sample\n", pin)
			return
		}
		fmt.Fprintf(os.Stderr, "pinctl: analog read: %v\n", err)
		return
	}
	fmt.Printf("A%d: %.3f\n", pin, v)
}
