// 版权所有 2024 DataVita Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 DataVita HTTP/HTTPS 服务器的生命周期。

# 概述

Manager 封装 net/http.Server：Start 非阻塞启动，Run 阻塞到 context
取消后优雅关闭，适合放进 errgroup 与其他后台任务一起运行。配置了
证书与私钥时通过 tlsutil 加载加固的 TLS 配置并以 HTTPS 服务。

# 核心类型

  - Manager：Start/Run/Shutdown/Addr。
  - Config：监听地址、读写超时、空闲超时、最大请求头、优雅关闭
    超时与 TLS 文件；ConfigFrom 由 config.ServerConfig 生成。
*/
package server
