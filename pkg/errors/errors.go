package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrTransactionConflict 事务冲突：并发事务抢占了同一批数据，可重试
// 事务内部的条件更新未命中预期行数时返回，由事务封装层自动重试
var ErrTransactionConflict = errors.New("并发冲突，请稍后重试")
