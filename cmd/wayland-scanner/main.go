/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Command wayland-scanner compiles a protocol description document, read
// from stdin, into Go source: message tables ("code") or constant
// declarations ("client-header"/"server-header").
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nabbar/wlserver/scanner"
	"github.com/nabbar/wlserver/scanner/parser"
)

func compile(cmd *cobra.Command, artifact scanner.Artifact, output string) error {
	out := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	warnings, err := scanner.Compile(artifact, cmd.InOrStdin(), out)
	for _, w := range warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), w.String())
	}
	if err != nil {
		if perr, ok := err.(*parser.Error); ok {
			return fmt.Errorf("%s", perr.Error())
		}
		return err
	}
	return nil
}

func newArtifactCommand(use, short string, artifact scanner.Artifact) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return compile(cmd, artifact, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wayland-scanner",
		Short:         "Compile a protocol description document into Go source",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newArtifactCommand("code", "Emit the full message tables", scanner.ArtifactCode),
		newArtifactCommand("client-header", "Emit client-facing constant declarations", scanner.ArtifactClientHeader),
		newArtifactCommand("server-header", "Emit server-facing constant declarations", scanner.ArtifactServerHeader),
	)

	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wayland-scanner:", err)
		os.Exit(1)
	}
}
