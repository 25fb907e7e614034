// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package console provides a client for the text console of a running Android
// emulator instance.
//
// Each emulator instance listens on a loopback TCP port (the console port,
// 5554 for the first instance). The console speaks a line based protocol: the
// client sends one command per line and the server answers with any number of
// payload lines followed by a status line. A reply ends either with "OK" or
// with a line containing "KO:" and a diagnostic message.
//
// A [Session] connects lazily on the first command. If the banner sent by the
// server requests authentication, the token from
// $HOME/.emulator_console_auth_token is sent once per connection.
package console
