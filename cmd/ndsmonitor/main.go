// Command ndsmonitor is an interactive register-level debugger: a
// raw-mode REPL that reads and writes MMIO addresses on a running Core one
// keystroke at a time, rather than through the line-buffered terminal the
// shell would otherwise hand it.
//
// Grounded on _examples/IntuitionAmiga-IntuitionEngine/debug_monitor.go
// (a state-machine monitor that owns its own input line buffer and
// cursor position rather than delegating to readline) and
// terminal_host.go/terminal_io.go's raw keystroke delivery model; this
// tool's minimal line editor generalizes that same "the monitor owns
// every keystroke" shape to a real terminal via golang.org/x/term instead
// of a virtual in-guest terminal device.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/intuitionamiga/ndscore/internal/core"
)

func main() {
	romPath := flag.String("rom", "", "ROM image path")
	bios9Path := flag.String("bios9", "", "ARM9 BIOS image")
	bios7Path := flag.String("bios7", "", "ARM7 BIOS image")
	fwPath := flag.String("firmware", "", "firmware image")
	flag.Parse()

	if *romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: ndsmonitor -rom game.nds [-bios9 ...] [-bios7 ...] [-firmware ...]")
		os.Exit(1)
	}

	c := core.Init(core.Config{})
	defer c.Close()

	if *bios9Path != "" {
		data, err := os.ReadFile(*bios9Path)
		must(err)
		must(c.LoadBIOS9(data))
	}
	if *bios7Path != "" {
		data, err := os.ReadFile(*bios7Path)
		must(err)
		must(c.LoadBIOS7(data))
	}

	romData, err := os.ReadFile(*romPath)
	must(err)
	must(c.LoadROM(romData))

	if *fwPath != "" {
		data, err := os.ReadFile(*fwPath)
		must(err)
		must(c.LoadFirmware(data))
	}

	c.Reset()

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		runScripted(c, os.Stdin)
		return
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndsmonitor: raw mode: %v\n", err)
		os.Exit(1)
	}
	defer term.Restore(fd, state)

	runInteractive(c)
}

// runInteractive owns the terminal one keystroke at a time: it builds a
// line locally (handling backspace and Enter), echoing each byte back
// itself, since raw mode disables the terminal driver's own echo and line
// editing.
func runInteractive(c *core.Core) {
	fmt.Print("ndsmonitor> ")
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			return
		}
		b := buf[0]
		switch b {
		case '\r', '\n':
			fmt.Print("\r\n")
			cmd := string(line)
			line = line[:0]
			if !dispatch(c, cmd) {
				return
			}
			fmt.Print("ndsmonitor> ")
		case 0x7F, 0x08: // backspace / DEL
			if len(line) > 0 {
				line = line[:len(line)-1]
				fmt.Print("\b \b")
			}
		case 0x03: // Ctrl-C
			fmt.Print("\r\n")
			return
		default:
			line = append(line, b)
			os.Stdout.Write(buf)
		}
	}
}

// runScripted reads commands line-by-line, for piped input and tests where
// no real terminal is attached to put into raw mode.
func runScripted(c *core.Core, in *os.File) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if !dispatch(c, scanner.Text()) {
			return
		}
	}
}

// dispatch parses and runs one command line, returning false if the
// session should end.
func dispatch(c *core.Core, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	switch fields[0] {
	case "q", "quit", "exit":
		return false
	case "r", "read":
		runRead(c, fields[1:])
	case "w", "write":
		runWrite(c, fields[1:])
	case "frame", "f":
		res := c.RunFrame()
		fmt.Printf("ran 1 frame, %d audio sample pairs\r\n", len(res.AudioLeft))
	case "key":
		runKey(c, fields[1:])
	case "help", "?":
		fmt.Print("commands: r <addr> [width]  w <addr> <val> [width]  frame  key <mask>  quit\r\n")
	default:
		fmt.Printf("unknown command %q (try 'help')\r\n", fields[0])
	}
	return true
}

func runRead(c *core.Core, args []string) {
	if len(args) < 1 {
		fmt.Print("usage: r <addr> [width]\r\n")
		return
	}
	addr, err := parseHex32(args[0])
	if err != nil {
		fmt.Printf("bad address: %v\r\n", err)
		return
	}
	width := 4
	if len(args) > 1 {
		width, _ = strconv.Atoi(args[1])
	}
	val := c.MMIORead(addr, width)
	fmt.Printf("%#08x = %#0*x\r\n", addr, width*2, val)
}

func runWrite(c *core.Core, args []string) {
	if len(args) < 2 {
		fmt.Print("usage: w <addr> <val> [width]\r\n")
		return
	}
	addr, err := parseHex32(args[0])
	if err != nil {
		fmt.Printf("bad address: %v\r\n", err)
		return
	}
	val, err := parseHex32(args[1])
	if err != nil {
		fmt.Printf("bad value: %v\r\n", err)
		return
	}
	width := 4
	if len(args) > 2 {
		width, _ = strconv.Atoi(args[2])
	}
	c.MMIOWrite(addr, width, val)
	fmt.Printf("wrote %#0*x to %#08x\r\n", width*2, val, addr)
}

func runKey(c *core.Core, args []string) {
	if len(args) < 1 {
		fmt.Print("usage: key <mask>\r\n")
		return
	}
	mask, err := parseHex32(args[0])
	if err != nil {
		fmt.Printf("bad mask: %v\r\n", err)
		return
	}
	c.SetKeyState(uint16(mask))
}

func parseHex32(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndsmonitor: %v\n", err)
		os.Exit(1)
	}
}
