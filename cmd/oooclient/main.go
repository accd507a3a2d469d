// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main provides the oooclient CLI: a thin, in-process translator
// over the conversion façade (spec.md §6's "façade only" client).
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sbywater/oocache/internal/convert"
	"github.com/sbywater/oocache/internal/convert/stubconverter"
	ooerrors "github.com/sbywater/oocache/internal/errors"
	"github.com/sbywater/oocache/internal/optionschema"
)

var (
	version     = "0.1.0"
	cacheDir    string
	metaProcord string
	outFmt      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "oooclient SRC",
		Short:         "Convert a document through the conversion façade",
		Args:          validateArgs,
		RunE:          runConvert,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = version

	rootCmd.Flags().StringVar(&cacheDir, "cachedir", "", "cache root directory; caching is disabled when empty")
	rootCmd.Flags().StringVar(&metaProcord, "meta-procord", "", "processing-order hint passed through to the converter")
	rootCmd.Flags().StringVar(&outFmt, "oocp-out-fmt", "", "requested output format extension")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("error: unrecognized arguments: %v", err)
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func validateArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("error: missing required argument: SRC")
	}
	if len(args) > 1 {
		return fmt.Errorf("error: unrecognized arguments: %s", strings.Join(args[1:], " "))
	}
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	path, err := convertOne(args[0], cacheDir, metaProcord, outFmt)
	if err != nil {
		return err
	}
	fmt.Printf("RESULT in %s\n", path)
	return nil
}

// convertOne drives the conversion façade for a single source document,
// translating its reported metadata into the loud error form a CLI needs.
func convertOne(src, cacheDir, metaProcord, outFmt string) (string, error) {
	opts := optionschema.FromFlatFields(map[string]string{
		"out_fmt":      outFmt,
		"meta-procord": metaProcord,
	})

	validator, err := optionschema.New()
	if err != nil {
		return "", fmt.Errorf("compiling option schema: %w", err)
	}
	if fieldErrors := validator.Validate(opts); len(fieldErrors) > 0 {
		return "", ooerrors.InvalidOptionsError(fieldErrors)
	}

	converter := stubconverter.StubConverter{}
	path, _, meta, err := convert.ConvertDoc(context.Background(), converter, src, opts, cacheDir)
	if err != nil {
		return "", err
	}
	if meta.Error {
		return "", ooerrors.ConversionFailedError(meta.OOCPStatus, fmt.Errorf("converter reported failure"))
	}
	return path, nil
}
