package main

import (
	"fmt"

	"github.com/jacl-coder/ElementalCard-Server/pkg/db"
	"github.com/spf13/cobra"
)

func newDBCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "数据库表结构管理",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "初始化数据库（创建表结构）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			conn, err := openSQL(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.InitAllTables(cmd.Context(), conn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ 数据库初始化完成")
			return nil
		},
	}

	var yes bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "重置数据库（删除所有表和数据）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("这将删除所有卡牌和余额，确认请加 --yes")
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			conn, err := openSQL(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.DropAllTables(cmd.Context(), conn); err != nil {
				return err
			}
			if err := db.InitAllTables(cmd.Context(), conn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ 数据库已重置")
			return nil
		},
	}
	resetCmd.Flags().BoolVar(&yes, "yes", false, "确认删除所有数据")

	cmd.AddCommand(initCmd, resetCmd)
	return cmd
}
