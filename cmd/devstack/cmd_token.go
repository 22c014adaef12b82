// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/unisonhq/unison-devstack/cmd/devstack/config"
)

// TokenOutput is the JSON payload of a token command.
type TokenOutput struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
}

// runToken mints an HS256 test token with the configured dev secret,
// matching what the local auth service issues. Useful for curl against
// protected endpoints without going through the password grant.
func runToken(cmd *cobra.Command, args []string) {
	start := time.Now()
	cfg := outputConfig()
	creds := config.ResolveCredentials()

	subject := tokenUser
	if subject == "" {
		subject = creds.Username
	}

	now := time.Now()
	expires := now.Add(tokenTTL)
	claims := jwt.MapClaims{
		"sub":  subject,
		"iss":  "unison-auth",
		"role": tokenRole,
		"iat":  now.Unix(),
		"exp":  expires.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(creds.AuthSecret))
	if err != nil {
		os.Exit(OutputResult(cfg, "token", start, nil, false, err))
	}

	if !cfg.JSON && !cfg.Quiet {
		fmt.Println(signed)
	}
	os.Exit(OutputResult(cfg, "token", start, &TokenOutput{
		Token:     signed,
		Subject:   subject,
		ExpiresAt: expires,
	}, false, nil))
}
