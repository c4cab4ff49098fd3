// Package main 为管理接口签发一个 admin token。
package main

import (
	"flag"
	"fmt"
	"os"

	"sms-relay-go/internal/config"
	"sms-relay-go/pkg/token"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	subject := flag.String("subject", "ops", "写入 token 的操作人名称")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "jwt.secret 未配置")
		os.Exit(1)
	}

	tok, err := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours).GenerateToken(*subject, token.RoleAdmin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "签发 token 失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
