// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// vescstat - VESC CAN command and telemetry toolkit
//
// A CLI tool for commanding VESC motor controllers over CAN and decoding
// their status broadcasts in human-readable format.

package main

import (
	"os"

	"github.com/ElwinBoots/vescstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
