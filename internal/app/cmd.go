package app

import (
	"fmt"
	"strconv"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// MigrateOptions はmigrateサブコマンドの引数を表す。
// Stepsが0の場合は未適用のマイグレーションを全て適用する。
type MigrateOptions struct {
	Down  bool
	Steps int
}

// ParseMigrateArgs はmigrateサブコマンドに続く引数を解析する。
//
//	migrate          全て適用
//	migrate up       全て適用
//	migrate down     1つ戻す
//	migrate down N   N個戻す
func ParseMigrateArgs(args []string) (MigrateOptions, error) {
	if len(args) == 0 || args[0] == "up" {
		return MigrateOptions{}, nil
	}
	if args[0] != "down" {
		return MigrateOptions{}, fmt.Errorf("unknown migrate direction %q", args[0])
	}

	opts := MigrateOptions{Down: true, Steps: 1}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return MigrateOptions{}, fmt.Errorf("rollback steps must be a positive integer: %q", args[1])
		}
		opts.Steps = n
	}
	return opts, nil
}
