// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/asentry/asentry/internal/bundle"
	"github.com/asentry/asentry/internal/release"
	"github.com/spf13/cobra"
)

func newBundleCmd(g *globalOptions) *cobra.Command {
	var (
		source  string
		output  string
		entries []string
		verify  bool
	)
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Build the firmware archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := g.load()
			if err != nil {
				return err
			}
			if source == "" {
				source = cfg.Release.FirmwareDir
			}
			if len(entries) == 0 {
				entries = cfg.Release.Entries
			}

			res, err := bundle.Build(cmd.Context(), bundle.Options{
				SourceDir: source,
				Output:    output,
				Entries:   entries,
			})
			if err != nil {
				return err
			}
			if verify {
				if err := bundle.Verify(res.Path, res.Entries); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s\n  size:    %d bytes\n  sha256:  %s\n  blake3:  %s\n  entries: %d\n",
				res.Path, res.Size, res.SHA256, res.BLAKE3, len(res.Entries))
			for _, e := range res.Entries {
				_, _ = fmt.Fprintf(out, "    %s\n", e)
			}
			if verify {
				_, _ = fmt.Fprintln(out, "  verified")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "firmware directory (default from release.firmwareDir)")
	cmd.Flags().StringVarP(&output, "output", "o", "asentry-firmware.zip", "archive path")
	cmd.Flags().StringSliceVar(&entries, "entry", nil, "archive entry relative to the source dir; repeatable (default from release.entries)")
	cmd.Flags().BoolVar(&verify, "verify", false, "read the archive back and check its entry list")
	return cmd
}

func newReleaseCmd(g *globalOptions) *cobra.Command {
	var (
		tag       string
		repo      string
		source    string
		assetName string
		outputDir string
		replace   bool
	)
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Build the firmware archive and attach it to a GitHub release",
		Long: "Build the firmware archive and upload it to the release for the tag.\n" +
			"Repository, tag and token come from GITHUB_REPOSITORY, GITHUB_REF_NAME,\n" +
			"GITHUB_TOKEN and the GITHUB_EVENT_PATH payload; flags override them.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := g.load()
			if err != nil {
				return err
			}

			ev, err := release.EventFromEnv()
			if err != nil {
				return err
			}
			ev = ev.Merge(release.Event{Repository: strings.TrimSpace(repo), Tag: strings.TrimSpace(tag)})
			if err := ev.Validate(); err != nil {
				return err
			}

			client, err := release.NewClient(release.Config{
				BaseURL:    cfg.Release.APIURL,
				UploadURL:  cfg.Release.UploadURL,
				Token:      ev.Token,
				Repository: ev.Repository,
			})
			if err != nil {
				return err
			}

			if source == "" {
				source = cfg.Release.FirmwareDir
			}
			if assetName == "" {
				assetName = cfg.Release.AssetName
			}
			res, err := release.NewPublisher(client).Publish(cmd.Context(), release.PublishRequest{
				Repository: ev.Repository,
				Tag:        ev.Tag,
				SourceDir:  source,
				Entries:    cfg.Release.Entries,
				AssetName:  assetName,
				OutputDir:  outputDir,
				Replace:    replace || cfg.Release.Replace,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "uploaded %s to %s@%s (%d bytes, sha256 %s)\n",
				res.Asset.Name, ev.Repository, res.Release.TagName, res.Bundle.Size, res.Bundle.SHA256)
			if res.Asset.DownloadURL != "" {
				_, _ = fmt.Fprintln(out, res.Asset.DownloadURL)
			}
			if outputDir != "" {
				_, _ = fmt.Fprintln(out, filepath.Join(outputDir, res.Asset.Name))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "release tag (default from the CI event)")
	cmd.Flags().StringVar(&repo, "repo", "", "owner/name (default GITHUB_REPOSITORY)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "firmware directory (default from release.firmwareDir)")
	cmd.Flags().StringVar(&assetName, "asset-name", "", "asset name; {tag} is replaced (default from release.assetName)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "keep the built archive in this directory")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace an existing asset with the same name")
	return cmd
}
