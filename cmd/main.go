package main

import (
	"fmt"
	"log"
	"os"

	"github.com/noxer/bytewriter"
	"github.com/urfave/cli/v2"

	"github.com/nullboot/kernel/disks"
	"github.com/nullboot/kernel/fat32"
	"github.com/nullboot/kernel/mbr"
)

func main() {
	app := &cli.App{
		Usage: "Manage FAT32 disk image files for the kernel to boot from",
		Commands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "Create a disk image with an MBR and a fresh FAT32 partition",
				ArgsUsage: "OUTPUT_FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "geometry",
						Value: "fat32-32mib",
						Usage: "predefined disk geometry slug (see disks.Slugs)",
					},
					&cli.Uint64Flag{
						Name:  "partition-lba",
						Value: 2048,
						Usage: "starting LBA of the FAT32 partition",
					},
				},
				Action: formatImage,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func formatImage(ctx *cli.Context) error {
	outputPath := ctx.Args().First()
	if outputPath == "" {
		return fmt.Errorf("missing required argument OUTPUT_FILE")
	}

	geometry, err := disks.GetPredefinedDiskGeometry(ctx.String("geometry"))
	if err != nil {
		return err
	}
	partitionLBA := uint32(ctx.Uint64("partition-lba"))
	totalSectors := uint32(geometry.TotalSizeBytes() / fat32.SectorSize)
	if totalSectors <= partitionLBA {
		return fmt.Errorf(
			"geometry %q is too small for a partition starting at LBA %d",
			geometry.Slug, partitionLBA)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", outputPath, err)
	}
	defer file.Close()

	if err := file.Truncate(int64(totalSectors) * fat32.SectorSize); err != nil {
		return fmt.Errorf("size %q: %w", outputPath, err)
	}

	device := &fileBlockDevice{file: file}

	partitionSectors := totalSectors - partitionLBA
	table := mbr.Table{
		Partitions: [4]mbr.PartitionEntry{
			{
				Bootable:    true,
				PartitionID: mbr.PartitionTypeFAT32LBA,
				StartLBA:    partitionLBA,
				Length:      partitionSectors,
			},
		},
	}
	device.WriteSector(0, table.Encode())

	opts := fat32.DefaultFormatOptions(partitionSectors)
	if err := fat32.Format(device, partitionLBA, opts); err != nil {
		return fmt.Errorf("format %q: %w", outputPath, err)
	}

	fmt.Printf(
		"wrote %s: %d sectors (%q), FAT32 partition at LBA %d\n",
		outputPath, totalSectors, geometry.Slug, partitionLBA)
	return nil
}

// fileBlockDevice adapts an *os.File to fat32.BlockDevice, reading and
// writing whole sectors at their absolute byte offset.
type fileBlockDevice struct {
	file *os.File
}

func (d *fileBlockDevice) ReadSector(lba uint32) ([]byte, error) {
	buf := make([]byte, fat32.SectorSize)
	if _, err := d.file.ReadAt(buf, int64(lba)*fat32.SectorSize); err != nil {
		return nil, fmt.Errorf("read sector %d: %w", lba, err)
	}
	return buf, nil
}

// WriteSector pads/truncates data to exactly one sector through a
// bytewriter before persisting it, the same way the teacher's own disk
// formatters assemble a fixed-size region ahead of writing it out.
func (d *fileBlockDevice) WriteSector(lba uint32, data []byte) {
	sector := make([]byte, fat32.SectorSize)
	bytewriter.New(sector).Write(data)
	if _, err := d.file.WriteAt(sector, int64(lba)*fat32.SectorSize); err != nil {
		panic(fmt.Sprintf("write sector %d: %s", lba, err))
	}
}
