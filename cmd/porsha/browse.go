package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/porsha/internal/diskimage"
	"github.com/Ashfaaq98/porsha/internal/disknav"
	"github.com/Ashfaaq98/porsha/internal/dispatch"
	"github.com/Ashfaaq98/porsha/internal/models"
)

func volumesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "volumes <image>",
		Short: "Enumerate the volumes of a disk image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opener := diskimage.DiskfsOpener{SectorSize: a.cfg.SectorSize}
			req := dispatch.Request{Kind: dispatch.KindEnumerateVolumes, ImagePath: args[0]}
			res, err := runTask(a, "disk", req, disknav.NewExecutor(opener))
			if err != nil || res == nil {
				return err
			}
			printVolumes(cmd.OutOrStdout(), res.Volumes)
			return nil
		},
	}
}

func browseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse <image>",
		Short: "Interactively browse the filesystems of a disk image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opener := diskimage.DiskfsOpener{SectorSize: a.cfg.SectorSize}
			nav := disknav.New(a.dispatcher, opener)
			b := &browser{
				app: a,
				nav: nav,
				in:  bufio.NewScanner(cmd.InOrStdin()),
				out: cmd.OutOrStdout(),
				err: cmd.ErrOrStderr(),
			}
			return b.run(args[0])
		},
	}
}

// browser is the interactive shell over the navigator. Each action submits
// one task and waits for its completion before prompting again.
type browser struct {
	app *app
	nav *disknav.Navigator
	in  *bufio.Scanner
	out io.Writer
	err io.Writer
}

func (b *browser) run(imagePath string) error {
	if err := b.do(func() (*dispatch.Task, error) { return b.nav.SelectImage(imagePath) }); err != nil {
		return err
	}

	for {
		fmt.Fprint(b.out, "porsha> ")
		if !b.in.Scan() {
			return b.in.Err()
		}
		line := strings.TrimSpace(b.in.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit", "q":
			return nil
		case "help":
			b.help()
		case "volumes":
			printVolumes(b.out, b.nav.Volumes())
		case "ls":
			b.printListing()
		case "open":
			if len(fields) != 2 {
				fmt.Fprintln(b.err, "usage: open <slot>")
				continue
			}
			slot, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Fprintln(b.err, "slot must be a number")
				continue
			}
			b.report(b.do(func() (*dispatch.Task, error) { return b.nav.SelectVolume(slot) }))
		case "cd":
			if len(fields) < 2 {
				fmt.Fprintln(b.err, "usage: cd <name|inode>")
				continue
			}
			b.report(b.enter(strings.Join(fields[1:], " ")))
		case "image":
			if len(fields) != 2 {
				fmt.Fprintln(b.err, "usage: image <path>")
				continue
			}
			b.report(b.do(func() (*dispatch.Task, error) { return b.nav.SelectImage(fields[1]) }))
		default:
			fmt.Fprintf(b.err, "unknown command %q; try help\n", fields[0])
		}
	}
}

func (b *browser) help() {
	fmt.Fprintln(b.out, `Commands:
  volumes         show the image's volumes
  open <slot>     open a volume's filesystem and list its root
  ls              show the current directory listing
  cd <name|inode> enter a subdirectory
  image <path>    switch to a different disk image
  quit            leave the browser`)
}

// enter resolves a name or inode against the current listing and navigates
// into it.
func (b *browser) enter(target string) error {
	entries := b.nav.Entries()
	var inode uint64
	found := false
	if n, err := strconv.ParseUint(target, 10, 64); err == nil {
		inode, found = n, true
	} else {
		for _, e := range entries {
			if e.Name == target {
				inode, found = e.Inode, true
				break
			}
		}
	}
	if !found {
		return fmt.Errorf("no entry named %q in the current listing", target)
	}
	return b.do(func() (*dispatch.Task, error) { return b.nav.EnterDirectory(inode) })
}

// do runs one navigation action to completion, relaying updates.
func (b *browser) do(action func() (*dispatch.Task, error)) error {
	t, err := action()
	if err != nil {
		return err
	}

	for {
		select {
		case u := <-b.nav.Updates():
			b.show(u)
			if u.Done {
				return nil
			}
		case <-t.Done():
			// Drain whatever updates the fold produced.
			for {
				select {
				case u := <-b.nav.Updates():
					b.show(u)
					if u.Done {
						return nil
					}
				default:
					return nil
				}
			}
		}
	}
}

func (b *browser) show(u disknav.Update) {
	switch {
	case u.Err != nil && u.Blocking:
		fmt.Fprintf(b.err, "ERROR: %v\n", u.Err)
	case u.Err != nil:
		fmt.Fprintf(b.err, "note: %v\n", u.Err)
	case u.Progress != "":
		fmt.Fprintln(b.err, u.Progress)
	case u.Cancelled:
		fmt.Fprintln(b.err, "Task cancelled.")
	case u.Volumes != nil:
		printVolumes(b.out, u.Volumes)
	case u.Entries != nil:
		if u.Label != "" {
			fmt.Fprintf(b.out, "Filesystem: %s\n", u.Label)
		}
		printListing(b.out, u.Entries)
	}
}

func (b *browser) report(err error) {
	if err != nil {
		fmt.Fprintf(b.err, "ERROR: %v\n", err)
	}
}

func (b *browser) printListing() {
	printListing(b.out, b.nav.Entries())
}

func printVolumes(out io.Writer, volumes []models.VolumeDescriptor) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Slot\tDescription\tStart Sector\tSector Count\tFlags")
	for _, v := range volumes {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n",
			v.Slot, v.Description, v.StartSector, v.SectorCount, v.Flags)
	}
	w.Flush()
}

func printListing(out io.Writer, entries []models.DirectoryEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Inode\tName\tType\tMode\tSize\tModified\tAccessed\tChanged\tCreated\tDeleted?")
	for _, e := range entries {
		deleted := "No"
		if e.IsDeleted {
			deleted = "Yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Inode, e.Name, e.Type, e.Mode, e.Size,
			e.Modified, e.Accessed, e.Changed, e.Created, deleted)
	}
	w.Flush()
}
