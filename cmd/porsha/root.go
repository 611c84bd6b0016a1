package main

import (
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/porsha/internal/acquire"
	"github.com/Ashfaaq98/porsha/internal/audit"
	"github.com/Ashfaaq98/porsha/internal/capability"
	"github.com/Ashfaaq98/porsha/internal/config"
	"github.com/Ashfaaq98/porsha/internal/dispatch"
	"github.com/Ashfaaq98/porsha/internal/hashing"
	"github.com/Ashfaaq98/porsha/internal/metadata"
	"github.com/Ashfaaq98/porsha/internal/netcap"
	"github.com/Ashfaaq98/porsha/internal/report"
	"github.com/Ashfaaq98/porsha/internal/utils"
)

const version = "0.1.0"

// app holds the wired components shared by all commands.
type app struct {
	cfg        *config.Config
	caps       capability.Set
	dispatcher *dispatch.Dispatcher
	journal    *audit.Journal
}

func rootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "porsha",
		Short:         "Offline digital-forensics workstation tool",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.Load()
			utils.InitDefaultLogger(a.cfg.LogLevel)
			a.caps = capability.Probe()

			journal, err := audit.Open(a.cfg.EvidenceDir)
			if err != nil {
				return err
			}
			a.journal = journal

			a.dispatcher = dispatch.New()
			a.dispatcher.SetRecorder(journal)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.journal != nil {
				a.journal.Close()
			}
		},
	}

	cmd.AddCommand(
		volumesCommand(a),
		browseCommand(a),
		hashCommand(a),
		metaCommand(a),
		pcapCommand(a),
		acquireCommand(a),
		reportCommand(a),
		versionCommand(a),
	)
	return cmd
}

// runTask submits one request, relays progress to stderr and waits for the
// terminal outcome. An interrupt triggers a cooperative stop with the
// configured grace period.
func runTask(a *app, resource string, req dispatch.Request, exec dispatch.Executor) (*dispatch.Result, error) {
	t, err := a.dispatcher.Submit(resource, req, exec)
	if err != nil {
		return nil, err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	go func() {
		if _, ok := <-interrupt; ok {
			fmt.Fprintln(os.Stderr, "Stopping analysis...")
			t.StopAndWait(a.cfg.StopGrace)
		}
	}()

	var result *dispatch.Result
	var failure error
	for ev := range t.Events() {
		switch ev.Type {
		case dispatch.EventProgress:
			fmt.Fprintln(os.Stderr, ev.Message)
		case dispatch.EventResult:
			r := ev.Result
			result = &r
		case dispatch.EventFailure:
			failure = ev.Err
		case dispatch.EventDone:
		}
	}
	if failure != nil {
		return nil, failure
	}
	if result == nil {
		fmt.Fprintln(os.Stderr, "Task cancelled.")
	}
	return result, nil
}

func hashCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file>",
		Short: "Calculate MD5 and SHA-256 hashes of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dispatch.Request{Kind: dispatch.KindHashFile, FilePath: args[0]}
			res, err := runTask(a, "hash", req, hashing.Executor(afero.NewOsFs()))
			if err != nil || res == nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "File\t%s\n", res.Hashes.Path)
			fmt.Fprintf(w, "Size\t%d\n", res.Hashes.Size)
			fmt.Fprintf(w, "MD5\t%s\n", res.Hashes.MD5)
			fmt.Fprintf(w, "SHA-256\t%s\n", res.Hashes.SHA256)
			return w.Flush()
		},
	}
}

func metaCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "meta <file>",
		Short: "Extract file metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dispatch.Request{Kind: dispatch.KindExtractMetadata, FilePath: args[0]}
			res, err := runTask(a, "metadata", req, metadata.Executor(afero.NewOsFs()))
			if err != nil || res == nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, field := range res.Fields {
				fmt.Fprintf(w, "%s\t%s\n", field.Key, field.Value)
			}
			return w.Flush()
		},
	}
}

func pcapCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pcap <capture>",
		Short: "Summarize a packet capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dispatch.Request{Kind: dispatch.KindAnalyzeCapture, FilePath: args[0]}
			res, err := runTask(a, "netcap", req, netcap.Executor())
			if err != nil || res == nil {
				return err
			}
			out := cmd.OutOrStdout()
			s := res.Capture.Summary
			fmt.Fprintf(out, "Packets: %d\nFirst: %s\nLast:  %s\n\n", s.PacketCount, s.StartTime, s.EndTime)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "Proto\tEndpoint A\tEndpoint B\tPackets")
			for _, c := range res.Capture.Conversations {
				fmt.Fprintf(w, "%s\t%s:%d\t%s:%d\t%d\n",
					c.Protocol, c.SrcIP, c.SrcPort, c.DstIP, c.DstPort, c.PacketCount)
			}
			return w.Flush()
		},
	}
}

func acquireCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "acquire <source>",
		Short: "Create a forensic image of a disk or device file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dispatch.Request{
				Kind:      dispatch.KindAcquireDisk,
				FilePath:  args[0],
				OutputDir: a.cfg.EvidenceDir,
			}
			res, err := runTask(a, "acquire", req, acquire.Executor())
			if err != nil || res == nil {
				return err
			}
			img := res.Image
			fmt.Fprintf(cmd.OutOrStdout(), "Image: %s\nSize: %d\nMD5: %s\nSHA-256: %s\n",
				img.ImagePath, img.Size, img.MD5, img.SHA256)
			return nil
		},
	}
}

func reportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Export this session's task journal and logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := report.Export(cmd.Context(), a.cfg.EvidenceDir, a.journal, utils.GetLogs())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func versionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and engine availability",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "porsha %s\n", version)
			for _, line := range a.caps.Describe() {
				fmt.Fprintln(out, line)
			}
		},
	}
}
