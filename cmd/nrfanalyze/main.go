package main

import (
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/soypat/saleae"
	"github.com/soypat/saleae/analyzers"
)

// Optional flags.
var (
	timingsOutput string
)

type BusCtl struct {
	// Print data as little endian words instead of bytes.
	Words        bool
	OmitReadData bool
	OmitRead     bool
	OmitWrite    bool
	// Omit status register accesses, mostly wakeup polling.
	OmitStatus bool
}

func main() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "nrfanalyze - Process Binary Saleae digital data files corresponding to nRF70 SPI transactions.\n\tUsage:\n")
		flag.PrintDefaults()
	}
	enable := flag.String("f-cs", "digital_0.bin", "Input filename: SPI CS data.")
	mosi := flag.String("f-mosi", "digital_1.bin", "Input filename: SPI MOSI data.")
	clk := flag.String("f-clk", "digital_2.bin", "Input filename: SPI SCK data.")
	miso := flag.String("f-miso", "digital_3.bin", "Input filename: SPI MISO data.")
	output := flag.String("o-cmd", "commands.txt", "Output filename of nRF70 transactions.")
	flag.StringVar(&timingsOutput, "o-time", "", "Output timing data to a file corresponding to output transaction history line-by-line.")
	words := flag.Bool("words", false, "Print data as little endian 32 bit words.")
	omitReadData := flag.Bool("omit-read-data", false, "Choose to omit read data in output.")
	omitReadAll := flag.Bool("omit-read", false, "Choose to omit read transactions in output.")
	omitWriteAll := flag.Bool("omit-write", false, "Choose to omit write transactions in output.")
	omitStatus := flag.Bool("omit-sr", false, "Choose to omit status register transactions in output.")
	flag.Parse()

	BUS := BusCtl{
		Words:        *words,
		OmitReadData: *omitReadData,
		OmitRead:     *omitReadAll,
		OmitWrite:    *omitWriteAll,
		OmitStatus:   *omitStatus,
	}
	if BUS.OmitRead && BUS.OmitWrite {
		log.Fatal("cannot omit both read and write transactions")
	}
	start := time.Now()
	if err := BUS.run(*mosi, *miso, *enable, *clk, *output); err != nil {
		log.Fatal(err.Error())
	}
	slog.Info("finished", slog.Duration("elapsed", time.Since(start)))
}

func (bus *BusCtl) run(mosi, miso, enable, clk, output string) error {
	txs, err := bus.processSpiFiles(mosi, miso, clk, enable)
	if err != nil {
		return err
	}
	fp, err := os.Create(output)
	if err != nil {
		return err
	}
	defer fp.Close()

	var timings *os.File
	if timingsOutput != "" {
		slog.Info("creating timings file", slog.String("name", timingsOutput))
		timings, err = os.Create(timingsOutput)
		if err != nil {
			return err
		}
		defer timings.Close()
	}
	for _, tx := range txs {
		if !bus.keep(&tx) {
			continue
		}
		err = bus.writeTx(fp, &tx)
		if err != nil {
			return err
		}
		if timings != nil {
			fmt.Fprintf(timings, "t=%f\tdata=%#x\n", tx.Start, tx.Data)
		}
	}
	return nil
}

func (bus *BusCtl) keep(tx *nrftx) bool {
	write := tx.Cmd.Op.IsWrite()
	switch {
	case bus.OmitStatus && tx.Cmd.Op.IsStatus():
		return false
	case bus.OmitRead && !write, bus.OmitWrite && write:
		return false
	case bus.OmitReadData && !write:
		tx.Data = tx.Data[:0]
	}
	return true
}

func (bus *BusCtl) writeTx(w io.Writer, tx *nrftx) (err error) {
	const fmtMsg = "tx×%2d %s"
	_, err = fmt.Fprintf(w, fmtMsg, tx.Num, tx.Cmd.String())
	if err != nil {
		return err
	}
	if len(tx.Data) > 0 {
		if bus.Words {
			_, err = fmt.Fprintf(w, " data=%#x", bytesAsWords(tx.Data))
		} else {
			_, err = fmt.Fprintf(w, " data=%#x", tx.Data)
		}
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w)
	return err
}

func (bus *BusCtl) processSpiFiles(fmosi, fmiso, fclk, fenable string) ([]nrftx, error) {
	mosi, err := opendigital(fmosi)
	if err != nil {
		return nil, err
	}
	miso, err := opendigital(fmiso)
	if err != nil {
		return nil, err
	}
	clk, err := opendigital(fclk)
	if err != nil {
		return nil, err
	}
	enable, err := opendigital(fenable)
	if err != nil {
		return nil, err
	}
	spi := analyzers.SPI{}
	txs, _ := spi.Scan(clk, enable, mosi, miso)
	return bus.process(txs), nil
}

func opendigital(filename string) (*saleae.DigitalFile, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	df, err := saleae.ReadDigitalFile(fp)
	if err != nil {
		return nil, err
	}
	return df, nil
}

// Opcode is the first byte of an nRF70 SPI transaction.
type Opcode uint8

const (
	OpWrite    Opcode = 0x02
	OpReadSR0  Opcode = 0x05
	OpRead     Opcode = 0x0B
	OpReadSR1  Opcode = 0x1F
	OpReadSR2  Opcode = 0x2F
	OpWriteSR2 Opcode = 0x3F
)

func (op Opcode) IsWrite() bool { return op == OpWrite || op == OpWriteSR2 }

func (op Opcode) IsStatus() bool {
	return op == OpReadSR0 || op == OpReadSR1 || op == OpReadSR2 || op == OpWriteSR2
}

func (op Opcode) String() (s string) {
	switch op {
	case OpWrite:
		s = "write"
	case OpRead:
		s = "read"
	case OpReadSR0:
		s = "rdsr0"
	case OpReadSR1:
		s = "rdsr1"
	case OpReadSR2:
		s = "rdsr2"
	case OpWriteSR2:
		s = "wrsr2"
	default:
		s = fmt.Sprintf("op(%#02x)", uint8(op))
	}
	return s
}

// NRFCmd is the decoded header of a transaction.
type NRFCmd struct {
	Op Opcode
	// Addr is the 24 bit bus address of memory accesses.
	Addr uint32
	// Size is the number of data bytes transferred.
	Size int
}

func (cmd *NRFCmd) String() string {
	if cmd.Op.IsStatus() {
		return fmt.Sprintf("%-6s", cmd.Op.String())
	}
	name, off := regionOf(cmd.Addr)
	return fmt.Sprintf("%-6s addr=%#06x  %12s+%#06x  sz=%4d", cmd.Op.String(), cmd.Addr, name, off, cmd.Size)
}

// CommandFromTx decodes an SPI transaction into its command and the data
// bytes relevant to it: MOSI data for writes, MISO data for reads.
func CommandFromTx(sdo, sdi []byte) (cmd NRFCmd, data []byte) {
	if len(sdo) == 0 {
		return cmd, nil
	}
	cmd.Op = Opcode(sdo[0])
	switch cmd.Op {
	case OpWrite:
		if len(sdo) < 4 {
			return cmd, nil
		}
		cmd.Addr = uint32(sdo[1]&^0x80)<<16 | uint32(sdo[2])<<8 | uint32(sdo[3])
		data = sdo[4:]
	case OpRead:
		if len(sdo) < 4 {
			return cmd, nil
		}
		cmd.Addr = uint32(sdo[1])<<16 | uint32(sdo[2])<<8 | uint32(sdo[3])
		// Fast read clocks out one dummy byte after the address.
		if len(sdi) > 5 {
			data = sdi[5:]
		}
	case OpReadSR0, OpReadSR1, OpReadSR2:
		if len(sdi) > 1 {
			data = sdi[1:2]
		}
	case OpWriteSR2:
		if len(sdo) > 1 {
			data = sdo[1:2]
		}
	}
	cmd.Size = len(data)
	return cmd, data
}

type nrftx struct {
	Num   int
	Cmd   NRFCmd
	Data  []byte
	Start float64
}

// process decodes transactions, collapsing runs of identical consecutive
// transactions such as status register polls into a single counted entry.
func (bus *BusCtl) process(txs []analyzers.TxSPI) (nrftxs []nrftx) {
	var accumulativeResults int = 1
	for i := 0; i < len(txs); i++ {
		tx := txs[i]
		cmd, data := CommandFromTx(tx.SDO, tx.SDI)
		for j := i + 1; j < len(txs); j++ {
			nextcmd, nextdata := CommandFromTx(txs[j].SDO, txs[j].SDI)
			if nextcmd != cmd || !bytes.Equal(data, nextdata) {
				break
			}
			accumulativeResults++
			i = j
		}
		nrftxs = append(nrftxs, nrftx{
			Num:   accumulativeResults,
			Cmd:   cmd,
			Data:  data,
			Start: tx.StartTime(),
		})
		accumulativeResults = 1
	}
	return nrftxs
}

// busRegion is a window of the nRF70 bus address space.
type busRegion struct {
	name       string
	start, end uint32
}

var busRegions = [...]busRegion{
	{"SYSBUS", 0x000000, 0x008FFF},
	{"EXT_SYS_BUS", 0x009000, 0x03FFFF},
	{"PBUS", 0x040000, 0x07FFFF},
	{"GRAM", 0x080000, 0x092000},
	{"PKTRAM", 0x0C0000, 0x0F0FFF},
	{"LMAC_ROM", 0x100000, 0x134000},
	{"LMAC_RET_RAM", 0x140000, 0x14C000},
	{"LMAC_SRC_RAM", 0x180000, 0x190000},
	{"UMAC_ROM", 0x200000, 0x261800},
	{"UMAC_RET_RAM", 0x280000, 0x2A4000},
	{"UMAC_SRC_RAM", 0x300000, 0x338000},
}

// regionOf returns the name of the region containing bus address addr and
// the offset within it.
func regionOf(addr uint32) (string, uint32) {
	for _, r := range busRegions {
		if addr >= r.start && addr <= r.end {
			return r.name, addr - r.start
		}
	}
	return "unknown", addr
}

func bytesAsWords(b []byte) []uint32 {
	words := make([]uint32, 0, (len(b)+3)/4)
	for len(b) >= 4 {
		words = append(words, binary.LittleEndian.Uint32(b))
		b = b[4:]
	}
	if len(b) > 0 {
		var tail [4]byte
		copy(tail[:], b)
		words = append(words, binary.LittleEndian.Uint32(tail[:]))
	}
	return words
}
