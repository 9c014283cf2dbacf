/*
包 engine 提供进程内的数据帧引擎会话与会话管理器。

# 概述

Session 在嵌入式 SQLite 仓库之上实现惰性 DataFrame：每个变换只编译出
新的查询并立即做一次语义分析，Collect、Count、Show 等动作才真正执行。
仓库、事件日志、配置与临时目录在启动时自动创建并以 file:// URI 记录。

# 核心类型

  - Manager：每个进程至多一个存活会话，首次使用时创建并复用，
    Stop 后释放资源、删除临时目录（有限次重试）。
  - Session：引擎会话，提供 SQL、Table、Range、CreateDataFrame、
    ReadCSV、ReadJSON 以及目录查询。
  - DataFrame / GroupedData / Writer：惰性数据帧 API。
  - AnalysisError：SQL 层的语义错误。

会话只使用一条仓库连接，临时视图在会话存活期间可见，Stop 后消失。
*/
package engine
