// SPDX-License-Identifier: MPL-2.0

// Package manifest reads per-module package.json files.
//
// Only "name", "dependencies" and the "build" object matter to bleep:
//
//	{
//	  "name": "analyse",
//	  "dependencies": {"common": "workspace:*", "chessground": "^9"},
//	  "build": {
//	    "alias": "analysis",
//	    "bundle": [
//	      {"input": "src/main.ts", "output": "analysisBoard", "importName": "LichessAnalyse", "trigger": true},
//	      {"input": "src/study/index.ts", "output": "analyse.study"}
//	    ],
//	    "pre": [["node", "gen-sprites.mjs"]],
//	    "post": [["cp", "dist/analyse.js", "../../public/compiled/"]]
//	  }
//	}
//
// Documents are validated against the embedded CUE schema (manifest_schema.cue).
package manifest
