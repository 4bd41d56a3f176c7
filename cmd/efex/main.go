// Command efex drives a device over the EFEX/FEL/FES USB bring-up
// protocol: dumping and patching memory, executing code, and probing
// flash, the same operations libefex's original C CLI exposed.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.com/YuzukiTsuru/libefex/efex"
	"github.com/YuzukiTsuru/libefex/fel"
	"github.com/YuzukiTsuru/libefex/payload"

	_ "github.com/YuzukiTsuru/libefex/usbgousb"
	_ "github.com/YuzukiTsuru/libefex/usbnative"
)

const (
	exitOK = iota
	exitUsage
	exitDeviceNotFound
	exitUSBInitFailed
	exitEFEXInitFailed
	exitOperationFailed
)

// ConfigFileName is the optional config file consulted for defaults
// before flags and positional arguments are applied.
const ConfigFileName = "efex.yml"

var k = koanf.New(".")

type config struct {
	Payload        string `koanf:"payload"`
	Backend        string `koanf:"backend"`
	InnerChunkKiB  int    `koanf:"inner_chunk_kib"`
	USBTimeoutSecs int    `koanf:"usb_timeout_secs"`
}

func setupconfig() config {
	defaults := config{Payload: "", Backend: "auto", InnerChunkKiB: 64, USBTimeoutSecs: 10}
	k.Load(structs.Provider(defaults, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such") {
			log.Printf("warning: error loading %s: %v", ConfigFileName, err)
		}
	}
	var c config
	k.Unmarshal("", &c)

	if c.InnerChunkKiB > 0 {
		efex.MaxInnerPayload = uint32(c.InnerChunkKiB) * 1024
	}
	if c.USBTimeoutSecs > 0 {
		efex.BulkTimeout = time.Duration(c.USBTimeoutSecs) * time.Second
	}
	return c
}

func usage() {
	fmt.Fprint(os.Stderr, `usage:
    efex version                                        - Show chip version
    efex hexdump <address> <length>                     - Dumps memory region in hex
    efex dump <address> <length>                        - Binary memory dump to stdout
    efex read32 <address>                               - Read 32-bits value from device memory
    efex write32 <address> <value>                      - Write 32-bits value to device memory
    efex read <address> <length> <file>                 - Read memory to file
    efex write <address> <file>                         - Write file to memory
    efex exec <address>                                 - Call function address
[options]
     -p payloads [arm, aarch64, riscv, e907]
`)
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func parseSize(s string) (int, error) {
	v, err := strconv.ParseUint(s, 0, 63)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func parseArch(s string) payload.Arch {
	switch s {
	case "arm":
		return payload.ArchARM32
	case "aarch64":
		return payload.ArchAArch64
	case "riscv":
		return payload.ArchRISCV
	case "e907", "":
		return payload.ArchRISCV32E907
	default:
		fmt.Fprintf(os.Stderr, "Unknown payload arch %q, defaulting to e907\n", s)
		return payload.ArchRISCV32E907
	}
}

func parseBackend(s string) efex.BackendType {
	switch s {
	case "libusb":
		return efex.BackendLibusb
	case "platform-native":
		return efex.BackendPlatformNative
	default:
		return efex.BackendAuto
	}
}

// progressBar renders the spec's 48-character carriage-return progress
// bar for file-bound read/write, finalised with a trailing newline once
// done reaches total.
func progressBar(done, total int, start time.Time) {
	const width = 48
	frac := 0.0
	if total > 0 {
		frac = float64(done) / float64(total)
	}
	filled := int(frac * width)
	if filled > width {
		filled = width
	}
	elapsed := time.Since(start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(done) / elapsed
	}
	eta := time.Duration(0)
	if rate > 0 {
		eta = time.Duration(float64(total-done)/rate) * time.Second
	}
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", width-filled)
	fmt.Printf("\r[%s] %5.1f%%  %8.1f B/s  ETA %6s", bar, frac*100, rate, eta.Truncate(time.Second))
	if done >= total {
		fmt.Println()
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return exitUsage
	}

	cfg := setupconfig()

	archFlag := cfg.Payload
	backendFlag := cfg.Backend
	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-p":
			if i+1 >= len(args) {
				usage()
				return exitUsage
			}
			archFlag = args[i+1]
			i++
		case "-b":
			if i+1 >= len(args) {
				usage()
				return exitUsage
			}
			backendFlag = args[i+1]
			i++
		default:
			positional = append(positional, args[i])
		}
	}
	if len(positional) < 1 {
		usage()
		return exitUsage
	}

	if err := efex.SetBackendType(parseBackend(backendFlag)); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitUsage
	}
	if err := payload.Init(parseArch(archFlag)); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitUsage
	}

	cmd := positional[0]
	cmdArgs := positional[1:]

	// Validate argument shape before touching the device, so a
	// malformed invocation never performs USB I/O (§8 scenario 6).
	switch cmd {
	case "version", "exec":
	case "hexdump", "dump", "read32", "write32", "write":
	case "read":
	default:
		usage()
		return exitUsage
	}

	var addr, value uint32
	var length int
	var file string
	var err error

	switch cmd {
	case "exec", "read32":
		if len(cmdArgs) < 1 {
			usage()
			return exitUsage
		}
		if addr, err = parseU32(cmdArgs[0]); err != nil {
			fmt.Fprintln(os.Stderr, "Invalid address")
			return exitUsage
		}
	case "write32":
		if len(cmdArgs) < 2 {
			usage()
			return exitUsage
		}
		if addr, err = parseU32(cmdArgs[0]); err != nil {
			fmt.Fprintln(os.Stderr, "Invalid address/value")
			return exitUsage
		}
		if value, err = parseU32(cmdArgs[1]); err != nil {
			fmt.Fprintln(os.Stderr, "Invalid address/value")
			return exitUsage
		}
	case "hexdump", "dump":
		if len(cmdArgs) < 2 {
			usage()
			return exitUsage
		}
		if addr, err = parseU32(cmdArgs[0]); err != nil {
			fmt.Fprintln(os.Stderr, "Invalid address/length")
			return exitUsage
		}
		if length, err = parseSize(cmdArgs[1]); err != nil {
			fmt.Fprintln(os.Stderr, "Invalid address/length")
			return exitUsage
		}
	case "read":
		if len(cmdArgs) < 3 {
			usage()
			return exitUsage
		}
		if addr, err = parseU32(cmdArgs[0]); err != nil {
			fmt.Fprintln(os.Stderr, "Invalid address/length")
			return exitUsage
		}
		if length, err = parseSize(cmdArgs[1]); err != nil {
			fmt.Fprintln(os.Stderr, "Invalid address/length")
			return exitUsage
		}
		file = cmdArgs[2]
	case "write":
		if len(cmdArgs) < 2 {
			usage()
			return exitUsage
		}
		if addr, err = parseU32(cmdArgs[0]); err != nil {
			fmt.Fprintln(os.Stderr, "Invalid address")
			return exitUsage
		}
		file = cmdArgs[1]
	}

	ctx, efexErr := efex.NewContext()
	if efexErr != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", efexErr)
		return exitUSBInitFailed
	}
	if efexErr = ctx.Scan(); efexErr != nil {
		fmt.Fprintln(os.Stderr, "ERROR: No matching USB device found")
		return exitDeviceNotFound
	}
	defer ctx.Close()
	if efexErr = ctx.Init(); efexErr != nil {
		fmt.Fprintln(os.Stderr, "ERROR: Failed to initialize USB device")
		return exitUSBInitFailed
	}
	if efexErr = ctx.EFEXInit(); efexErr != nil {
		fmt.Fprintln(os.Stderr, "ERROR: EFEX init failed")
		return exitEFEXInitFailed
	}

	switch cmd {
	case "version":
		printVersion(ctx)
	case "hexdump":
		return doHexdump(ctx, addr, length)
	case "dump":
		return doDump(ctx, addr, length)
	case "read32":
		return doRead32(ctx, addr, archFlag != "")
	case "write32":
		return doWrite32(ctx, addr, value, archFlag != "")
	case "read":
		return doRead(ctx, addr, length, file)
	case "write":
		return doWrite(ctx, addr, file)
	case "exec":
		return doExec(ctx, addr)
	}
	return exitOK
}

func printVersion(ctx *efex.Context) {
	r := ctx.Resp
	fmt.Printf("Chip ID      : 0x%08x\n", r.ID)
	fmt.Printf("Firmware     : 0x%08x\n", r.Firmware)
	fmt.Printf("Mode         : 0x%04x\n", uint16(r.Mode))
	fmt.Printf("Data Addr    : 0x%08x\n", r.DataStartAddress)
	fmt.Printf("Data Length  : %d\n", r.DataLength)
	fmt.Printf("Data Flag    : %d\n", r.DataFlag)
}

func readRegion(ctx *efex.Context, addr uint32, length int) ([]byte, int) {
	buf := make([]byte, length)
	if err := fel.Read(ctx, addr, buf); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return nil, exitOperationFailed
	}
	return buf, exitOK
}

func doHexdump(ctx *efex.Context, addr uint32, length int) int {
	buf, code := readRegion(ctx, addr, length)
	if buf == nil {
		return code
	}
	for j := 0; j < len(buf); j += 16 {
		fmt.Printf("%08x: ", addr+uint32(j))
		for i := 0; i < 16; i++ {
			if j+i < len(buf) {
				fmt.Printf("%02x ", buf[j+i])
			} else {
				fmt.Print("   ")
			}
		}
		fmt.Print(" ")
		for i := 0; i < 16; i++ {
			if j+i < len(buf) {
				c := buf[j+i]
				if c >= 32 && c <= 126 {
					fmt.Printf("%c", c)
				} else {
					fmt.Print(".")
				}
			} else {
				fmt.Print(" ")
			}
		}
		fmt.Println()
	}
	return exitOK
}

// setStdoutBinary is a no-op on this runtime: unlike the C CRT, Go's
// os.Stdout.Write never performs LF->CRLF text-mode translation, so
// there is no _setmode(_O_BINARY) equivalent to apply on any platform.
// Kept so dump's call site matches the CLI contract's documented
// behavior on Windows.
func setStdoutBinary() {}

func doDump(ctx *efex.Context, addr uint32, length int) int {
	setStdoutBinary()
	buf, code := readRegion(ctx, addr, length)
	if buf == nil {
		return code
	}
	os.Stdout.Write(buf)
	return exitOK
}

func doRead32(ctx *efex.Context, addr uint32, usePayload bool) int {
	var v uint32
	var err *efex.Error
	if usePayload {
		v, err = payload.ReadL(ctx, addr)
	} else {
		v, err = fel.ReadL(ctx, addr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return exitOperationFailed
	}
	fmt.Printf("0x%08x\n", v)
	return exitOK
}

func doWrite32(ctx *efex.Context, addr, value uint32, usePayload bool) int {
	var err *efex.Error
	if usePayload {
		err = payload.WriteL(ctx, addr, value)
	} else {
		err = fel.WriteL(ctx, addr, value)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return exitOperationFailed
	}
	return exitOK
}

const cliChunkSize = 64 * 1024

func doRead(ctx *efex.Context, addr uint32, length int, path string) int {
	f, ferr := os.Create(path)
	if ferr != nil {
		fmt.Fprintf(os.Stderr, "Failed to open file %q\n", path)
		return exitUsage
	}
	defer f.Close()

	start := time.Now()
	remaining := length
	cur := addr
	done := 0
	buf := make([]byte, cliChunkSize)
	for remaining > 0 {
		n := remaining
		if n > cliChunkSize {
			n = cliChunkSize
		}
		if err := fel.Read(ctx, cur, buf[:n]); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			return exitOperationFailed
		}
		if _, werr := f.Write(buf[:n]); werr != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", werr)
			return exitOperationFailed
		}
		cur += uint32(n)
		remaining -= n
		done += n
		progressBar(done, length, start)
	}
	return exitOK
}

func doWrite(ctx *efex.Context, addr uint32, path string) int {
	f, ferr := os.Open(path)
	if ferr != nil {
		fmt.Fprintf(os.Stderr, "Failed to open file %q\n", path)
		return exitUsage
	}
	defer f.Close()

	info, ferr := f.Stat()
	total := 0
	if ferr == nil {
		total = int(info.Size())
	}

	start := time.Now()
	cur := addr
	done := 0
	buf := make([]byte, cliChunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if err := fel.Write(ctx, cur, buf[:n]); err != nil {
				fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
				return exitOperationFailed
			}
			cur += uint32(n)
			done += n
			if total > 0 {
				progressBar(done, total, start)
			}
		}
		if rerr != nil {
			break
		}
	}
	if total > 0 && done < total {
		progressBar(total, total, start)
	}
	return exitOK
}

func doExec(ctx *efex.Context, addr uint32) int {
	if err := fel.Exec(ctx, addr); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return exitOperationFailed
	}
	return exitOK
}
