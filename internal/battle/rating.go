package battle

import "math"

// eloKFactor 是ELO算法中的K值，它决定了每次对战后分数变化的大小。
// 值越高，分数变化越剧烈。32是一个常用的标准值。
const eloKFactor = 32

// calculateElo 计算排位对战后的新ELO分数。
// 它接受胜者和败者的当前分数，返回他们的新分数。
func calculateElo(winnerScore, loserScore float64) (newWinnerScore, newLoserScore float64) {
	// 1. 计算双方的期望胜率
	expectedWinner := 1.0 / (1.0 + math.Pow(10, (loserScore-winnerScore)/400.0))
	expectedLoser := 1.0 / (1.0 + math.Pow(10, (winnerScore-loserScore)/400.0))

	// 2. 根据实际结果(胜=1, 负=0)和期望胜率，更新分数
	newWinnerScore = winnerScore + eloKFactor*(1-expectedWinner)
	newLoserScore = loserScore + eloKFactor*(0-expectedLoser)

	return
}
