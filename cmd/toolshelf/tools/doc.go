// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools implements the "toolshelf tools" command group: listing
// and validating tool definitions, and exercising the inter-tool data
// exchange between them (resolve, send).
package tools
