/*
包 database 封装 gorm 连接池，供 SQL 记录存储使用。

Open 根据驱动名（postgres、mysql、sqlite）选择方言并建立 PoolManager。
PoolManager 负责连接池参数、后台健康检查（Close 时停止）、统计信息
以及 WithTransaction / WithTransactionRetry 事务封装。内存 sqlite 会被
限制为单连接，保证所有查询看到同一个库。
*/
package database
