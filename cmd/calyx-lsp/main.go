// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"calyx/internal/lsp"
)

const lsName = "calyx"

var (
	version = "0.1.0"
	handler protocol.Handler
)

func main() {
	verbosity := flag.Int("v", 1, "log verbosity")
	logFile := flag.String("log", "", "log to this file instead of stderr")
	flag.Parse()

	var path *string
	if *logFile != "" {
		path = logFile
	}
	commonlog.Configure(*verbosity, path)
	log := commonlog.GetLogger("calyx.lsp")

	calyxHandler := lsp.NewCalyxHandler()

	handler = protocol.Handler{
		Initialize:                     calyxHandler.Initialize,
		Initialized:                    calyxHandler.Initialized,
		Shutdown:                       calyxHandler.Shutdown,
		SetTrace:                       calyxHandler.SetTrace,
		TextDocumentDidOpen:            calyxHandler.TextDocumentDidOpen,
		TextDocumentDidClose:           calyxHandler.TextDocumentDidClose,
		TextDocumentDidChange:          calyxHandler.TextDocumentDidChange,
		TextDocumentCompletion:         calyxHandler.TextDocumentCompletion,
		TextDocumentHover:              calyxHandler.TextDocumentHover,
		TextDocumentSemanticTokensFull: calyxHandler.TextDocumentSemanticTokensFull,
	}

	s := server.NewServer(&handler, lsName, false)

	log.Infof("starting %s language server %s", lsName, version)

	// editors talk to the server over stdio
	if err := s.RunStdio(); err != nil {
		log.Errorf("language server stopped: %s", err)
		os.Exit(1)
	}
}
