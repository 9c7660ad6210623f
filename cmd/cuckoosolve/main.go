// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/dblokhin/cuckoosolve/cuckoo"
	"github.com/dblokhin/cuckoosolve/engine"
	"github.com/sirupsen/logrus"
)

func init() {
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <hex-header> [edgebits]\n", os.Args[0])
		os.Exit(2)
	}

	header, err := hex.DecodeString(os.Args[1])
	if err != nil {
		logrus.Fatalf("invalid hex header: %v", err)
	}

	edgeBits := uint8(29)
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil || n < cuckoo.MinEdgeBits || n > 63 {
			logrus.Fatalf("invalid edgebits: %q", os.Args[2])
		}
		edgeBits = uint8(n)
	}

	logrus.Infof("solving header=%x edgebits=%d", header, edgeBits)

	engine.Init()
	defer engine.Shutdown()

	proof, found, err := engine.CuckooCall(header, edgeBits)
	if err != nil {
		logrus.Fatalf("solve error: %v", err)
	}
	if !found {
		fmt.Println("no cycle")
		return
	}

	ok, reason := cuckoo.VerifyProof(header, proof)
	if !ok {
		logrus.Fatalf("solver produced an unverifiable proof: %s", reason)
	}

	fmt.Printf("cycle found, nonces: %v\n", proof.Nonces)
}
