// Package ata implements the 28-bit LBA PIO driver for the primary ATA
// channel: IDENTIFY, sector read/write, and cache flush, all driven over an
// ioport.Bus. Every status poll is bounded so a missing or wedged device
// reports a timeout instead of hanging the kernel.
package ata

import (
	"github.com/nullboot/kernel/errors"
	"github.com/nullboot/kernel/ioport"
)

// SectorSize is the fixed transfer unit of the 28-bit LBA PIO commands.
const SectorSize = 512

// Port offsets relative to the channel's base, per the nine I/O ports the
// primary channel exposes.
const (
	offData        = 0
	offError        = 1
	offSectorCount  = 2
	offLBALow       = 3
	offLBAMid       = 4
	offLBAHigh      = 5
	offDevice       = 6
	offCommand      = 7
	offControlAlias = 0x206 // control register lives at base+0x206, not base+8
)

// PrimaryBase and PrimaryControl are the standard primary-channel port
// numbers.
const (
	PrimaryBase    = 0x1F0
	PrimaryControl = 0x3F6
)

// Command byte values.
const (
	cmdIdentify = 0xEC
	cmdRead28   = 0x20
	cmdWrite28  = 0x30
	cmdFlush    = 0xE7
)

// Status register bits.
const (
	statusERR = 1 << 0
	statusDRQ = 1 << 3
	statusBSY = 1 << 7
)

// deviceSelectMaster/Slave OR into the device register along with the top 4
// LBA bits.
const (
	deviceSelectMaster = 0xE0
	deviceSelectSlave  = 0xF0
)

// pollTimeout bounds every busy-wait loop; real firmware tolerates roughly
// this many status register reads before giving up on a wedged device.
const pollTimeout = 1_000_000

// Drive selects which of the two devices on a channel a Device talks to.
type Drive int

const (
	Master Drive = iota
	Slave
)

// Device is one ATA drive addressed over a channel's nine ports.
type Device struct {
	bus   ioport.Bus
	base  uint16
	drive Drive
}

// New binds a Device to the given channel base port (PrimaryBase for the
// primary channel) and drive selection.
func New(bus ioport.Bus, base uint16, drive Drive) *Device {
	return &Device{bus: bus, base: base, drive: drive}
}

func (d *Device) port(offset uint16) ioport.Port8 {
	return ioport.NewPort8(d.bus, d.base+offset)
}

// Control returns the port for the device control register, which lives at
// base+0x206 rather than contiguous with the other eight ports.
func (d *Device) Control() ioport.Port8 {
	return d.port(offControlAlias)
}

func (d *Device) deviceSelectByte() uint8 {
	if d.drive == Slave {
		return deviceSelectSlave
	}
	return deviceSelectMaster
}

// waitUntilReady polls the status register until BSY clears, ERR sets, or
// the poll count exceeds pollTimeout.
func (d *Device) waitUntilReady() (status uint8, err error) {
	statusPort := d.port(offCommand)
	for i := 0; i < pollTimeout; i++ {
		status = statusPort.Read()
		if status&statusBSY == 0 {
			if status&statusERR != 0 {
				return status, d.readError()
			}
			return status, nil
		}
	}
	return status, errors.ErrDeviceTimeout.WithMessage("status poll exceeded iteration bound")
}

func (d *Device) readError() error {
	code := d.port(offError).Read()
	return errors.ErrDeviceFault.WithMessage(errorCodeMessage(code))
}

// readDataWord/writeDataWord perform one 16-bit PIO transfer through the
// data register. Unlike the other registers the data port is read or
// written as a single word, not two adjacent byte ports, so this issues
// two 8-bit accesses to the same port rather than going through a Port16.
func (d *Device) readDataWord() uint16 {
	dataPort := d.port(offData)
	lo := dataPort.Read()
	hi := dataPort.Read()
	return uint16(lo) | uint16(hi)<<8
}

func (d *Device) writeDataWord(w uint16) {
	dataPort := d.port(offData)
	dataPort.Write(uint8(w))
	dataPort.Write(uint8(w >> 8))
}

func errorCodeMessage(code uint8) string {
	switch {
	case code&0x04 != 0:
		return "aborted command"
	case code&0x10 != 0:
		return "sector not found"
	case code&0x40 != 0:
		return "uncorrectable data error"
	default:
		return "unspecified"
	}
}

// Identity is the decoded subset of an IDENTIFY response the kernel cares
// about: the ASCII model and serial number strings.
type Identity struct {
	Model  string
	Serial string
}

// Identify issues IDENTIFY DEVICE. A status byte of 0x00 immediately after
// the command means no device is wired to this select line at all.
func (d *Device) Identify() (Identity, error) {
	d.port(offDevice).Write(d.deviceSelectByte())
	d.port(offSectorCount).Write(0)
	d.port(offLBALow).Write(0)
	d.port(offLBAMid).Write(0)
	d.port(offLBAHigh).Write(0)
	d.port(offCommand).Write(cmdIdentify)

	status := d.port(offCommand).Read()
	if status == 0x00 {
		return Identity{}, errors.ErrHardwareAbsent.WithMessage("no device responded to IDENTIFY")
	}
	if _, err := d.waitUntilReady(); err != nil {
		return Identity{}, err
	}

	words := make([]uint16, 256)
	for i := range words {
		words[i] = d.readDataWord()
	}
	return Identity{
		Model:  wordsToASCII(words[27:47]),
		Serial: wordsToASCII(words[10:20]),
	}, nil
}

// wordsToASCII splits each big-endian-within-word IDENTIFY string field
// into bytes, high byte first, as the ATA spec lays out model/serial text,
// and drops the trailing space/NUL padding that fills out the field.
func wordsToASCII(words []uint16) string {
	out := make([]byte, 0, len(words)*2)
	for _, w := range words {
		out = append(out, byte(w>>8), byte(w))
	}
	for len(out) > 0 && (out[len(out)-1] == ' ' || out[len(out)-1] == 0) {
		out = out[:len(out)-1]
	}
	return string(out)
}

// selectSector programs the sector-count and LBA registers for a 28-bit
// LBA command addressing exactly one sector.
func (d *Device) selectSector(lba uint32) {
	d.port(offDevice).Write(d.deviceSelectByte() | uint8((lba>>24)&0x0F))
	d.port(offSectorCount).Write(1)
	d.port(offLBALow).Write(uint8(lba))
	d.port(offLBAMid).Write(uint8(lba >> 8))
	d.port(offLBAHigh).Write(uint8(lba >> 16))
}

// ReadSector reads exactly SectorSize bytes from lba.
func (d *Device) ReadSector(lba uint32) ([]byte, error) {
	d.selectSector(lba)
	d.port(offCommand).Write(cmdRead28)

	if _, err := d.waitUntilReady(); err != nil {
		return nil, err
	}

	buf := make([]byte, SectorSize)
	for i := 0; i < SectorSize/2; i++ {
		word := d.readDataWord()
		buf[2*i] = uint8(word)
		buf[2*i+1] = uint8(word >> 8)
	}
	return buf, nil
}

// WriteSector writes data to lba. If data is shorter than SectorSize the
// remainder is padded with zeros; if it is longer, the excess is ignored.
func (d *Device) WriteSector(lba uint32, data []byte) error {
	d.selectSector(lba)
	d.port(offCommand).Write(cmdWrite28)

	if _, err := d.waitUntilReady(); err != nil {
		return err
	}

	for i := 0; i < SectorSize/2; i++ {
		var lo, hi uint8
		if j := 2 * i; j < len(data) {
			lo = data[j]
		}
		if j := 2*i + 1; j < len(data) {
			hi = data[j]
		}
		d.writeDataWord(uint16(lo) | uint16(hi)<<8)
	}
	_, err := d.waitUntilReady()
	return err
}

// Flush issues FLUSH CACHE, forcing any write-back cache on the device to
// commit to stable media.
func (d *Device) Flush() error {
	d.port(offCommand).Write(cmdFlush)
	_, err := d.waitUntilReady()
	return err
}
